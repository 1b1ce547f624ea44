package notifications

import (
	"embed"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// templatedChannels render their body from templates/<channel>_<kind>.tmpl.
// Kafka carries the payload as JSON instead.
var templatedChannels = []domain.ChannelType{
	domain.ChannelTypeEmail,
	domain.ChannelTypeTelegram,
	domain.ChannelTypeMattermost,
}

var noticeKinds = []domain.NoticeKind{domain.NoticeBreach, domain.NoticeWarning}

type templateKey struct {
	channel domain.ChannelType
	kind    domain.NoticeKind
}

// Renderer turns notice payloads into channel specific subject and body.
type Renderer struct {
	templates map[templateKey]*template.Template
}

// NewRenderer parses the embedded templates and fails if any channel and
// notice kind pair has none.
func NewRenderer() (*Renderer, error) {
	set, err := template.New("notifications").Funcs(template.FuncMap{
		"title":          titleCase,
		"upper":          strings.ToUpper,
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
		"priorityEmoji":  priorityEmoji,
		"escapeHTML":     html.EscapeString,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := &Renderer{templates: make(map[templateKey]*template.Template)}
	for _, channel := range templatedChannels {
		for _, kind := range noticeKinds {
			name := fmt.Sprintf("%s_%s.tmpl", channel, kind)
			tmpl := set.Lookup(name)
			if tmpl == nil {
				return nil, fmt.Errorf("missing template %s", name)
			}
			r.templates[templateKey{channel, kind}] = tmpl
		}
	}
	return r, nil
}

// Render returns the subject and body of payload for channelType.
func (r *Renderer) Render(channelType domain.ChannelType, payload NotificationPayload) (subject, body string, err error) {
	subject = renderSubject(payload)

	if channelType == domain.ChannelTypeKafka {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", "", fmt.Errorf("marshal payload: %w", err)
		}
		return subject, string(data), nil
	}

	tmpl, ok := r.templates[templateKey{channelType, payload.Kind}]
	if !ok {
		return "", "", fmt.Errorf("no template for %s %s notice", channelType, payload.Kind)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	return subject, strings.TrimSpace(sb.String()), nil
}

func renderSubject(payload NotificationPayload) string {
	prefix := "SLA"
	switch payload.Kind {
	case domain.NoticeBreach:
		prefix = "SLA Breached"
	case domain.NoticeWarning:
		prefix = "SLA Warning"
	}
	return fmt.Sprintf("[%s] %s %s deadline for incident %s",
		prefix, titleCase(string(payload.Priority)), payload.Deadline, payload.IncidentID)
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

// formatDuration renders the magnitude of d as "45s", "12m", "2h" or
// "2h 15m". Seconds are dropped once d reaches a minute.
func formatDuration(d time.Duration) string {
	d = d.Abs()
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}

	hours, minutes := int(d/time.Hour), int(d%time.Hour/time.Minute)
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}

func priorityEmoji(priority domain.Priority) string {
	switch priority {
	case domain.PriorityCritical:
		return "🔴"
	case domain.PriorityHigh:
		return "🟠"
	case domain.PriorityMedium:
		return "🟡"
	case domain.PriorityLow:
		return "🔵"
	default:
		return "⚪"
	}
}
