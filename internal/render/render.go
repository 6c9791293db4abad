// Package render turns lesson blocks into complete email documents.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/LeventeLantos/workshop-drip/internal/model"
)

// Lesson carries everything one lesson email needs.
type Lesson struct {
	FirstName     string
	WorkshopTitle string
	WorkshopImage string
	Subject       string
	Preheader     string
	Summary       string
	Content       []model.Block
	PostSlug      string
	LessonNumber  int
	LessonCount   int
}

type Renderer struct {
	siteURL string
	lesson  *template.Template
	confirm *template.Template
}

func New(siteURL string) *Renderer {
	return &Renderer{
		siteURL: strings.TrimRight(siteURL, "/"),
		lesson:  template.Must(template.New("lesson").Parse(lessonTemplate)),
		confirm: template.Must(template.New("confirm").Parse(confirmTemplate)),
	}
}

type lessonView struct {
	Lesson
	Greeting string
	WebURL   string
	Blocks   []blockView
}

type blockView struct {
	Type  model.BlockType
	Text  string
	Items []string
}

func (r *Renderer) Lesson(l Lesson) (string, error) {
	v := lessonView{
		Lesson:   l,
		Greeting: greeting(l.FirstName),
	}
	if l.PostSlug != "" {
		v.WebURL = r.siteURL + "/blog/" + l.PostSlug
	}
	for _, b := range l.Content {
		switch b.Type {
		case model.BlockParagraph, model.BlockHeading, model.BlockQuote, model.BlockCode:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
		case model.BlockList:
			if len(b.Items) == 0 {
				continue
			}
		default:
			// Unknown block types degrade to a paragraph.
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			b.Type = model.BlockParagraph
		}
		v.Blocks = append(v.Blocks, blockView{Type: b.Type, Text: b.Text, Items: b.Items})
	}

	var buf bytes.Buffer
	if err := r.lesson.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render lesson: %w", err)
	}
	return buf.String(), nil
}

type Confirmation struct {
	FirstName     string
	WorkshopTitle string
	ConfirmURL    string
}

type confirmView struct {
	Confirmation
	Greeting string
}

// ConfirmSubject is the subject line of the double opt-in email.
func ConfirmSubject(workshopTitle string) string {
	if workshopTitle == "" {
		return "Confirm your subscription"
	}
	return "Confirm your spot in " + workshopTitle
}

func (r *Renderer) Confirmation(c Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := r.confirm.Execute(&buf, confirmView{Confirmation: c, Greeting: greeting(c.FirstName)}); err != nil {
		return "", fmt.Errorf("render confirmation: %w", err)
	}
	return buf.String(), nil
}

func greeting(firstName string) string {
	if name := strings.TrimSpace(firstName); name != "" {
		return "Hi " + name + ","
	}
	return "Hi there,"
}
