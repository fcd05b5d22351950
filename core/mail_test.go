package core

import (
	htmltmpl "html/template"
	"strings"
	"testing"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func TestParseEmailTemplates(t *testing.T) {
	conf := &Config{TestMode: true, FrontendBaseURL: "https://clubhub.test"}
	ParseEmailTemplates(conf, nopLogger{})

	// every template must be cached in both flavors; a missing base layout
	// would make parsing fail silently and leave the cache empty.
	for _, name := range []string{"announcement", "application-approved", "password-reset"} {
		cache, ok := templates[name]
		if !ok {
			t.Errorf("template %q not cached", name)
			continue
		}
		for _, ext := range []string{".txt", ".gohtml"} {
			if _, ok := cache[ext]; !ok {
				t.Errorf("template %q missing %s variant", name, ext)
			}
		}
	}
}

func TestEmailMessage_Render(t *testing.T) {
	conf := &Config{TestMode: true, FrontendBaseURL: "https://clubhub.test"}
	ParseEmailTemplates(conf, nopLogger{})

	msg := &EmailMessage{
		TemplateName: "announcement",
		TemplateData: struct {
			Title  string
			Body   htmltmpl.HTML
			Sender string
		}{"Welcome Week", "Kickoff on Monday.", "The Committee"},
	}
	if err := msg.Render(conf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !msg.HasContent() {
		t.Fatal("rendered message has no content")
	}
	if !strings.Contains(msg.TextContent, "Welcome Week") {
		t.Errorf("TextContent missing title: %q", msg.TextContent)
	}
	if !strings.Contains(msg.TextContent, conf.FrontendBaseURL) {
		t.Errorf("TextContent missing base layout footer: %q", msg.TextContent)
	}
	if !strings.Contains(msg.HTMLContent, "Kickoff on Monday.") {
		t.Errorf("HTMLContent missing body: %q", msg.HTMLContent)
	}
}
