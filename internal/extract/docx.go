package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX carries no reliable page boundaries, so the whole document maps to
// page 1. Text lives in word/document.xml as paragraphs of runs.

type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
	} `xml:"body"`
}

type paragraphXML struct {
	Runs []runXML `xml:"r"`
}

type runXML struct {
	Text []textXML `xml:"t"`
}

type textXML struct {
	Content string `xml:",chardata"`
}

func readDOCX(path string) ([]Page, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx %s: %w", path, err)
	}
	defer reader.Close()

	var content []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open docx body %s: %w", path, err)
		}
		content, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read docx body %s: %w", path, err)
		}
		break
	}
	if content == nil {
		return nil, fmt.Errorf("docx %s: missing word/document.xml", path)
	}

	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse docx body %s: %w", path, err)
	}

	var lines []string
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
		if line := b.String(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}
