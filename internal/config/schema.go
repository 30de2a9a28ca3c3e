package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema of the configuration file.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "backends": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "kind": {"type": "string", "enum": ["openai", "anthropic", "gemini", "command"]},
          "model": {"type": "string"},
          "api_key": {"type": "string"},
          "api_key_env": {"type": "string"},
          "base_url": {"type": "string"},
          "command": {"type": "string"},
          "headers": {"type": "object", "additionalProperties": {"type": "string"}},
          "timeout_seconds": {"type": "integer", "minimum": 0}
        }
      }
    },
    "failover": {
      "type": "object",
      "properties": {
        "max_attempts": {"type": "integer", "minimum": 1},
        "retry_delay_seconds": {"type": "integer", "minimum": 0}
      }
    },
    "agent": {
      "type": "object",
      "properties": {
        "system_prompt": {"type": "string"},
        "history_window": {"type": "integer", "minimum": 0},
        "token_budget": {"type": "integer", "minimum": 0},
        "tokenizer": {"type": "string", "enum": ["estimate", "tiktoken"]},
        "tiktoken_encoding": {"type": "string"},
        "max_empty_replies": {"type": "integer", "minimum": 1},
        "max_turns": {"type": "integer", "minimum": 0},
        "max_tokens": {"type": "integer", "minimum": 0},
        "temperature": {"type": "number", "minimum": 0, "maximum": 2},
        "completion_phrase": {"type": "string", "minLength": 1},
        "failure_patterns": {"type": "array", "items": {"type": "string"}},
        "note_prefix": {"type": "string"}
      }
    },
    "executor": {
      "type": "object",
      "properties": {
        "shell": {"type": "string"},
        "timeout_seconds": {"type": "integer", "minimum": 0},
        "ping_count": {"type": "integer", "minimum": 0},
        "resolve_hosts": {"type": "boolean"},
        "dns_cache_size": {"type": "integer", "minimum": 0},
        "dns_cache_ttl_seconds": {"type": "integer", "minimum": 0}
      }
    },
    "directives": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "docs_url": {"type": "string"},
        "search_url": {"type": "string"},
        "max_chars": {"type": "integer", "minimum": 0},
        "max_results": {"type": "integer", "minimum": 0},
        "timeout_seconds": {"type": "integer", "minimum": 0},
        "rate_per_minute": {"type": "integer", "minimum": 0},
        "cache_size": {"type": "integer", "minimum": 0},
        "cache_ttl_seconds": {"type": "integer", "minimum": 0}
      }
    },
    "hooks": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "entries": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["event", "script"],
            "properties": {
              "id": {"type": "string"},
              "event": {"type": "string"},
              "script": {"type": "string"},
              "timeout_seconds": {"type": "integer", "minimum": 0},
              "enabled": {"type": "boolean"}
            }
          }
        }
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "max_size": {"type": "integer", "minimum": 1},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"},
        "pretty": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "properties": {
        "addr": {"type": "string"},
        "tracing": {"type": "boolean"}
      }
    },
    "data_dir": {"type": "string"},
    "history_file": {"type": "string"},
    "notes_file": {"type": "string"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// ValidateSchema validates raw configuration JSON against Schema.
func ValidateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}
