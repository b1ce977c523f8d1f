package server

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"eventreg/internal/models"
	"eventreg/internal/verify"
)

var questionnaireTmpl = template.Must(template.New("answer").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Event}}</title></head><body>
<h2>{{.Event}}</h2>
<p>Než potvrdíte svou účast, odpovězte prosím na několik otázek.</p>
<form method="post">
{{range .Fields}}<fieldset>
<legend>{{.Name}}</legend>
{{if .Error}}<p class="error">{{.Error}}</p>
{{end}}{{if .Choices}}{{$f := .}}{{range .Choices}}<label><input type="radio" name="{{$f.Key}}" value="{{.Index}}"{{if .Selected}} checked{{end}}> {{.Text}}</label><br>
{{end}}{{else}}<input type="text" name="{{.Key}}" value="{{.Value}}">
{{end}}</fieldset>
{{end}}<button type="submit">Odeslat</button>
</form>
</body></html>
`))

type formChoice struct {
	Index    int
	Text     string
	Selected bool
}

type formField struct {
	Key     string
	Name    string
	Value   string
	Error   string
	Choices []formChoice
}

func writeQuestionnaire(w http.ResponseWriter, log *zap.Logger, status int, qn *verify.Questionnaire, errs verify.AnswerErrors) {
	data := struct {
		Event  string
		Fields []formField
	}{Event: qn.Event.Name}

	for _, q := range qn.Questions {
		f := formField{
			Key:   "q" + strconv.FormatInt(q.ID, 10),
			Name:  q.Name,
			Value: qn.Answers[q.ID],
			Error: errs[q.ID],
		}
		if q.Type == models.QuestionClosed {
			for i, c := range q.Choices {
				f.Choices = append(f.Choices, formChoice{Index: i, Text: c, Selected: c == f.Value})
			}
		}
		data.Fields = append(data.Fields, f)
	}

	var buf bytes.Buffer
	if err := questionnaireTmpl.Execute(&buf, data); err != nil {
		log.Error("Failed to render questionnaire", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
