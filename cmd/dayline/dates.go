package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/mschirtzinger/dayline/internal/schema"
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDay turns "2025-03-01", "today", "yesterday", "last friday" and the
// like into a YYYY-MM-DD day relative to base.
func parseDay(text string, base time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return base.Format(schema.DateLayout), nil
	}
	if _, err := time.Parse(schema.DateLayout, text); err == nil {
		return text, nil
	}

	r, err := dateParser.Parse(text, base)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", text, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not understand date %q", text)
	}
	return r.Time.Format(schema.DateLayout), nil
}
