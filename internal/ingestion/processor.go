package ingestion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/catalog"
	"github.com/genetics-tutor/backend/pkg/logger"
)

var whitespace = regexp.MustCompile(`\s+`)

// Processor turns HTML topic sheets into catalog topics.
type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

// LoadDir parses every *.html file in dir, in file name order. Sheets that
// fail to parse or hold no topics are skipped with a warning.
func (p *Processor) LoadDir(dir string) ([]catalog.Topic, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list topic sheets: %w", err)
	}
	sort.Strings(paths)

	var topics []catalog.Topic
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			logger.Warn("Skipping unreadable topic sheet", zap.String("path", path), zap.Error(err))
			continue
		}
		parsed, err := p.ParseSheet(f)
		f.Close()
		if err != nil {
			logger.Warn("Skipping malformed topic sheet", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(parsed) == 0 {
			logger.Warn("Topic sheet has no topics", zap.String("path", path))
			continue
		}

		logger.Info("Loaded topic sheet", zap.String("path", path), zap.Int("topics", len(parsed)))
		topics = append(topics, parsed...)
	}

	return topics, nil
}

// ParseSheet reads every <article data-topic="..."> in r. Articles without a
// title or body are dropped.
func (p *Processor) ParseSheet(r io.Reader) ([]catalog.Topic, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var topics []catalog.Topic
	doc.Find("article[data-topic]").Each(func(i int, s *goquery.Selection) {
		topic, ok := p.parseArticle(s)
		if !ok {
			id, _ := s.Attr("data-topic")
			logger.Warn("Skipping incomplete topic", zap.String("topic", id))
			return
		}
		topics = append(topics, topic)
	})

	return topics, nil
}

func (p *Processor) parseArticle(s *goquery.Selection) (catalog.Topic, bool) {
	id, _ := s.Attr("data-topic")
	id = strings.ToLower(cleanText(id))

	title := cleanText(s.Find("h1, h2").First().Text())

	var paragraphs []string
	s.Find("p").Each(func(i int, p *goquery.Selection) {
		if text := cleanText(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if id == "" || title == "" || len(paragraphs) == 0 {
		return catalog.Topic{}, false
	}

	difficulty := catalog.Beginner
	if raw, ok := s.Attr("data-difficulty"); ok {
		parsed, err := catalog.ParseDifficulty(raw)
		if err != nil {
			logger.Warn("Unknown difficulty, using beginner", zap.String("topic", id), zap.String("difficulty", raw))
		} else {
			difficulty = parsed
		}
	}

	keywords := listItems(s, "ul.keywords li")
	for i, kw := range keywords {
		keywords[i] = strings.ToLower(kw)
	}

	return catalog.Topic{
		ID:            id,
		Title:         title,
		Content:       strings.Join(paragraphs, " "),
		Keywords:      keywords,
		Difficulty:    difficulty,
		RelatedTopics: listItems(s, "ul.related li"),
		Examples:      listItems(s, "ul.examples li"),
	}, true
}

func listItems(s *goquery.Selection, selector string) []string {
	var items []string
	s.Find(selector).Each(func(i int, li *goquery.Selection) {
		if text := cleanText(li.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

func cleanText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
