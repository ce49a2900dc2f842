package internal

import "time"

// Unit is one translatable text span. Identity is its position in the
// input sequence; several units may carry identical text.
type Unit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Texts returns the raw text of every unit in order.
func Texts(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Text
	}
	return out
}

type RunRequest struct {
	ID         string    `json:"id"`
	InputFile  string    `json:"input_file"`
	OutputFile string    `json:"output_file"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Service    string    `json:"service"`
	Units      int       `json:"units"`
	Timestamp  time.Time `json:"timestamp"`
}
