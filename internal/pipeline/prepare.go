package pipeline

import (
	"horse.fit/sentiflow/internal/source"
	"horse.fit/sentiflow/internal/textclean"
)

// preparedArticle is a fetched article after cleaning, ready to match and score.
type preparedArticle struct {
	url       string
	title     string
	excerpt   string
	language  string
	matchText string
	premise   string
	source    source.Article
}

func (s *Service) prepare(a source.Article, canonicalURL string) preparedArticle {
	title := textclean.PlainText(a.Title, a.URL)
	body := textclean.PlainText(a.Body(), a.URL)

	excerpt, _ := textclean.Truncate(body, s.opts.MaxContentLength)

	premise := title
	if body != "" {
		if premise != "" {
			premise += ". "
		}
		premise += body
	}

	return preparedArticle{
		url:       canonicalURL,
		title:     title,
		excerpt:   excerpt,
		language:  s.opts.DetectLanguage(premise),
		matchText: title + "\n" + body,
		premise:   premise,
		source:    a,
	}
}
