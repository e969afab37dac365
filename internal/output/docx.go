package output

import (
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/lexiqai/meeting-summarizer/internal/pipeline"
)

const (
	fontName = "Times New Roman"
	fontSize = 12
)

// writeDocx renders the summary as a Word document at path
func writeDocx(title string, res *pipeline.Result, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}
	s := res.Summary

	addRun(doc.AddParagraph(""), "Meeting summary: "+title, true, 16)

	for _, n := range notes(res) {
		p := doc.AddParagraph("")
		addRun(p, "Note: ", true, fontSize)
		addRun(p, n, false, fontSize)
	}

	addHeading(doc.AddParagraph(""), "Summary")
	addRun(doc.AddParagraph(""), strings.TrimSpace(s.Summary), false, fontSize)

	addHeading(doc.AddParagraph(""), "Decisions")
	if len(s.Decisions) == 0 {
		addRun(doc.AddParagraph(""), "None recorded.", false, fontSize)
	}
	for i, d := range s.Decisions {
		addRun(doc.AddParagraph(""), fmt.Sprintf("%d. %s", i+1, d), false, fontSize)
	}

	addHeading(doc.AddParagraph(""), "Action items")
	if len(s.ActionItems) == 0 {
		addRun(doc.AddParagraph(""), "None recorded.", false, fontSize)
	}
	for _, item := range s.ActionItems {
		p := doc.AddParagraph("")
		addRun(p, "• "+item.Description, false, fontSize)
		var meta []string
		if item.Owner != "" {
			meta = append(meta, "owner: "+item.Owner)
		}
		if item.Deadline != "" {
			meta = append(meta, "due: "+item.Deadline)
		}
		if len(meta) > 0 {
			addRun(p, " ("+strings.Join(meta, ", ")+")", false, fontSize)
		}
	}

	return doc.SaveTo(path)
}

func addHeading(p *docx.Paragraph, text string) {
	addRun(p, text, true, 14)
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
