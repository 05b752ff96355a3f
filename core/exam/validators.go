package exam

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizforge/core"
)

var (
	endAfterStartTag  = "endafterstart"
	endAfterStartText = "end time must be after start time"

	minOptionsTag  = "minoptions"
	minOptionsText = "multiple choice questions need at least 2 options"

	answerInOptionsTag  = "answerinoptions"
	answerInOptionsText = "answer must be one of the options"

	answerRequiredTag = "answerrequired"

	uniqueOptionsTag  = "uniqueoptions"
	uniqueOptionsText = "options must be unique"
)

// InitValidators registers the exam validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(examStructValidation, NewExam{}, UpdateExam{})
	core.RegisterCustomTranslation(validate, translator, endAfterStartTag, endAfterStartText)

	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, minOptionsTag, minOptionsText)
	core.RegisterCustomTranslation(validate, translator, answerInOptionsTag, answerInOptionsText)
	core.RegisterCustomTranslation(validate, translator, answerRequiredTag, "this field is required")
	core.RegisterCustomTranslation(validate, translator, uniqueOptionsTag, uniqueOptionsText)
}

func examStructValidation(sl validator.StructLevel) {
	switch e := sl.Current().Interface().(type) {
	case NewExam:
		if e.EndTime != nil && !e.StartTime.IsZero() && !e.EndTime.After(e.StartTime) {
			sl.ReportError(e.EndTime, "end_time", "EndTime", endAfterStartTag, "")
		}
	case UpdateExam:
		if e.EndTime != nil && !e.EndTime.After(e.StartTime) {
			sl.ReportError(e.EndTime, "end_time", "EndTime", endAfterStartTag, "")
		}
	}
}

func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}
	if q.Answer == "" {
		sl.ReportError(q.Answer, "answer", "Answer", answerRequiredTag, "")
		return
	}
	switch q.Kind {
	case KindMultipleChoice:
		if len(q.Options) < 2 {
			sl.ReportError(q.Options, "options", "Options", minOptionsTag, "")
			return
		}
		if hasDuplicates(q.Options) {
			sl.ReportError(q.Options, "options", "Options", uniqueOptionsTag, "")
			return
		}
		if !contains(q.Options, q.Answer) {
			sl.ReportError(q.Answer, "answer", "Answer", answerInOptionsTag, "")
		}
	case KindTrueFalse:
		if !contains(q.Options, q.Answer) {
			sl.ReportError(q.Answer, "answer", "Answer", answerInOptionsTag, "")
		}
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// hasDuplicates compares options case-insensitively: "Paris" and "paris" read as the same choice.
func hasDuplicates(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}
