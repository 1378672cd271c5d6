package course

import (
	"archive/zip"
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtract_MarkdownHeadings(t *testing.T) {
	md := "Intro paragraph.\n\n# Week 1\nInstall Python.\n\n## GA1\nDue Sunday.\n```\n# not a heading\n```\n#hashtag stays\n# Empty\n\n"
	got, err := Extract("/course/tds.md", []byte(md))
	if err != nil {
		t.Fatal(err)
	}
	want := []Section{
		{Title: "tds", Content: "Intro paragraph."},
		{Title: "Week 1", Content: "Install Python."},
		{Title: "GA1", Content: "Due Sunday.\n```\n# not a heading\n```\n#hashtag stays"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sections =\n%+v\nwant\n%+v", got, want)
	}
}

func TestExtract_PlainTextWithoutHeadings(t *testing.T) {
	got, err := Extract("notes.txt", []byte("line one\r\nline two\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "notes" || got[0].Content != "line one\nline two" {
		t.Errorf("sections = %+v", got)
	}
	if got, _ := Extract("blank.md", []byte("  \n\n")); len(got) != 0 {
		t.Errorf("blank file sections = %+v", got)
	}
}

func TestExtract_InvalidUTF8(t *testing.T) {
	got, err := Extract("bad.txt", []byte{'o', 'k', 0xff})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "ok\ufffd" {
		t.Errorf("sections = %+v", got)
	}
}

func TestExtract_HTML(t *testing.T) {
	page := `<html><head><title>Docker Intro</title><style>p{}</style></head>
<body><nav>Home | About</nav><h1>Containers</h1><p>Use   docker run.</p><ul><li>Images</li></ul><script>x()</script></body></html>`
	got, err := Extract("docker.html", []byte(page))
	if err != nil {
		t.Fatal(err)
	}
	want := []Section{{Title: "Docker Intro", Content: "Containers\nUse docker run.\nImages"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %+v, want %+v", got, want)
	}

	got, _ = Extract("untitled.htm", []byte(`<body><h1>Heading only title</h1><p>body</p></body>`))
	if len(got) != 1 || got[0].Title != "Heading only title" {
		t.Errorf("h1 title fallback: %+v", got)
	}
}

func TestExtract_XLSX(t *testing.T) {
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Week")
	_ = f.SetCellValue("Sheet1", "B1", "Topic")
	_ = f.SetCellValue("Sheet1", "A2", 1)
	_ = f.SetCellValue("Sheet1", "B2", "Git")
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Extract("schedule.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := []Section{{Title: "schedule - Sheet1", Content: "Week\tTopic\n1\tGit"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %+v, want %+v", got, want)
	}
}

func minimalDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(`<?xml version="1.0"?><w:document><w:body>` + body + `</w:body></w:document>`))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_DOCX(t *testing.T) {
	body := `<w:p w:rsidR="00A1"><w:r><w:t>Project </w:t></w:r><w:r><w:t xml:space="preserve">1 &amp; 2</w:t></w:r></w:p>` +
		`<w:p><w:pPr/></w:p>` +
		`<w:p><w:r><w:t>Submit via portal</w:t></w:r></w:p>`
	got, err := Extract("/course/projects.docx", minimalDocx(t, body))
	if err != nil {
		t.Fatal(err)
	}
	want := []Section{{Title: "projects", Content: "Project 1 & 2\nSubmit via portal"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %+v, want %+v", got, want)
	}
}

func TestExtract_BinaryErrors(t *testing.T) {
	for _, name := range []string{"broken.pdf", "broken.docx", "broken.xlsx"} {
		t.Run(name, func(t *testing.T) {
			if _, err := Extract(name, []byte("definitely not a binary document")); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestParseHeading(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"# Title", "Title", true},
		{"### Deep ###", "Deep", true},
		{"#NoSpace", "", false},
		{"####### too deep", "", false},
		{"#", "", false},
		{"plain", "", false},
	}
	for _, tt := range tests {
		got, ok := parseHeading(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseHeading(%q) = %q, %v", tt.line, got, ok)
		}
	}
}
