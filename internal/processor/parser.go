package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// Parser extracts structured fields from log entries.
type Parser struct {
	cfg      config.ParserConfig
	patterns []*regexp.Regexp
}

// NewParser creates a new parsing processor. A pattern may name one of
// CommonLogPatterns instead of spelling out the expression.
func NewParser(cfg config.ParserConfig) (*Parser, error) {
	p := &Parser{cfg: cfg}

	for _, pattern := range cfg.Patterns {
		if common, ok := CommonLogPatterns[pattern]; ok {
			pattern = common
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
		}
		p.patterns = append(p.patterns, re)
	}

	return p, nil
}

// Name returns the processor identifier.
func (p *Parser) Name() string {
	return "parser"
}

// Process parses the log entry and populates the Parsed field.
func (p *Parser) Process(ctx context.Context, entry *model.LogEntry) error {
	if !p.cfg.Enabled {
		return nil
	}

	defer p.detectLevel(entry)

	// Try JSON parsing first if enabled
	if p.cfg.JSONAutoDetect && p.tryParseJSON(entry) {
		return nil
	}

	for _, re := range p.patterns {
		if p.tryParseRegex(entry, re) {
			return nil
		}
	}

	return nil
}

// detectLevel fills "level" from the raw line when no parser set it.
func (p *Parser) detectLevel(entry *model.LogEntry) {
	if _, ok := entry.Parsed["level"]; ok {
		return
	}
	if level := ParseLevel(string(entry.Raw)); level != "" {
		entry.Parsed["level"] = level
	}
}

// tryParseJSON attempts to parse the raw log as JSON.
func (p *Parser) tryParseJSON(entry *model.LogEntry) bool {
	raw := bytes.TrimSpace(entry.Raw)
	if len(raw) == 0 {
		return false
	}

	// Quick check for JSON-like content
	if raw[0] != '{' && raw[0] != '[' {
		return false
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false
	}

	// Merge parsed JSON into entry.Parsed
	for k, v := range data {
		entry.Parsed[k] = v
	}

	entry.Parsed["_parsed_format"] = "json"
	return true
}

// tryParseRegex attempts to extract named groups from a regex pattern.
func (p *Parser) tryParseRegex(entry *model.LogEntry, re *regexp.Regexp) bool {
	names := re.SubexpNames()
	if len(names) <= 1 {
		return false // No named groups
	}

	matches := re.FindSubmatch(entry.Raw)
	if matches == nil {
		return false
	}

	for i, name := range names {
		if i == 0 || name == "" {
			continue // Skip full match and unnamed groups
		}
		if i < len(matches) {
			entry.Parsed[name] = string(matches[i])
		}
	}

	entry.Parsed["_parsed_format"] = "regex"
	entry.Parsed["_parsed_pattern"] = re.String()
	return true
}

// CommonLogPatterns provides pre-built regex patterns for common log formats.
var CommonLogPatterns = map[string]string{
	// Apache/Nginx Combined Log Format
	"combined": `^(?P<remote_addr>\S+) - (?P<remote_user>\S+) \[(?P<time_local>[^\]]+)\] "(?P<request>[^"]*)" (?P<status>\d+) (?P<body_bytes>\d+) "(?P<http_referer>[^"]*)" "(?P<http_user_agent>[^"]*)"`,

	// Syslog (RFC 3164)
	"syslog": `^<(?P<priority>\d+)>(?P<timestamp>\w{3}\s+\d+\s+\d+:\d+:\d+)\s+(?P<hostname>\S+)\s+(?P<program>[^\[:]+)(?:\[(?P<pid>\d+)\])?:\s*(?P<message>.*)`,

	// Key-Value pairs
	"kv": `(?P<key>\w+)=(?P<value>"[^"]*"|\S+)`,

	// Log level detection
	"level": `(?i)\b(?P<level>DEBUG|INFO|WARN(?:ING)?|ERROR|FATAL|CRITICAL|TRACE)\b`,
}

var levelPattern = regexp.MustCompile(CommonLogPatterns["level"])

// ParseLevel extracts the most severe log level word in raw.
// WARNING is reported as WARN.
func ParseLevel(raw string) string {
	found := make(map[string]bool)
	for _, m := range levelPattern.FindAllStringSubmatch(raw, -1) {
		found[strings.ToUpper(m[1])] = true
	}
	for _, level := range []string{"FATAL", "CRITICAL", "ERROR", "WARN", "WARNING", "INFO", "DEBUG", "TRACE"} {
		if found[level] {
			if level == "WARNING" {
				return "WARN"
			}
			return level
		}
	}
	return ""
}
