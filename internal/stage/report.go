package stage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// Report is the data behind an HTML run report.
type Report struct {
	Name      string
	Timestamp string
	Duration  time.Duration
	Success   bool
	Error     string
	Trips     string
	Actions   []Action
	Shots     []ReportShot
	Views     []Snapshot
}

// ReportShot is a shot embedded in the report as a data URL.
type ReportShot struct {
	Label   string
	Step    int
	Mode    string
	DataURL template.URL
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<style>
body { font-family: sans-serif; background: #18181c; color: #dcdcd2; margin: 2em; }
.pass { color: #7fd18b; } .fail { color: #e06c75; }
pre { background: #0f0f12; padding: 1em; overflow-x: auto; }
img { image-rendering: pixelated; border: 1px solid #444; }
td, th { padding: 0.2em 1em; text-align: left; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
<p class="{{if .Success}}pass{{else}}fail{{end}}">{{if .Success}}PASSED{{else}}FAILED{{end}} in {{.Duration}} at {{.Timestamp}}</p>
{{if .Error}}<pre>{{.Error}}</pre>{{end}}
{{if .Trips}}<h2>Trips</h2><pre>{{.Trips}}</pre>{{end}}
{{if .Shots}}<h2>Shots</h2>
{{range .Shots}}<figure><img src="{{.DataURL}}" alt="{{.Label}}"><figcaption>{{.Step}}. {{.Label}} ({{.Mode}})</figcaption></figure>
{{end}}{{end}}
<h2>Actions</h2>
<table>
<tr><th>Time</th><th>Type</th><th>Details</th></tr>
{{range .Actions}}<tr><td>{{.Timestamp.Format "15:04:05.000"}}</td><td>{{.Type}}</td><td>{{.Details}}</td></tr>
{{end}}</table>
{{if .Views}}<h2>Views</h2>
{{range .Views}}<h3>{{.Mode}} at {{.Timestamp.Format "15:04:05.000"}}</h3><pre>{{.View}}</pre>
{{end}}{{end}}
</body>
</html>
`))

// NewReport builds the report for a finished run. Views are stored stripped of escapes.
func NewReport(name string, r *Result) (Report, error) {
	rep := Report{
		Name:      name,
		Timestamp: time.Now().Format(time.RFC3339),
		Duration:  r.Duration.Round(time.Millisecond),
		Success:   r.Success,
		Error:     r.ErrorMessage,
		Trips:     r.TripReport,
		Actions:   r.Actions,
	}

	for _, s := range r.Snapshots {
		s.View = ansi.Strip(s.View)
		rep.Views = append(rep.Views, s)
	}

	for _, s := range r.Shots {
		if s.Image == nil {
			continue
		}
		url, err := dataURL(s)
		if err != nil {
			return Report{}, err
		}
		rep.Shots = append(rep.Shots, ReportShot{Label: s.Label, Step: s.Step, Mode: s.Mode, DataURL: url})
	}
	return rep, nil
}

// WriteHTML renders the report.
func (r Report) WriteHTML(w io.Writer) error {
	return reportTemplate.Execute(w, r)
}

// WriteReport writes index.html for the run into dir.
func WriteReport(dir, name string, r *Result) (string, error) {
	rep, err := NewReport(name, r)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, "index.html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := rep.WriteHTML(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return path, f.Close()
}

func dataURL(s Shot) (template.URL, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.Image); err != nil {
		return "", fmt.Errorf("failed to encode shot %s: %w", s.Label, err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
