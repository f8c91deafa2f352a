// Package export writes the archived feed as an RSS 2.0 document.
package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"feedsync/internal/model"
	"feedsync/internal/render"
)

// createdAtLayout is the timestamp format the posts API serves.
const createdAtLayout = "2006-01-02 15:04:05"

// Channel describes the exported feed.
type Channel struct {
	Title       string
	Link        string
	Description string
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Generator   string    `xml:"generator"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Description string        `xml:"description,omitempty"`
	GUID        rssGUID       `xml:"guid"`
	PubDate     string        `xml:"pubDate,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// WriteRSS writes posts, in the given order, as RSS items.
// Descriptions carry HTML-escaped content so readers never render user markup.
func WriteRSS(w io.Writer, ch Channel, posts []model.Post) error {
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:       ch.Title,
			Link:        ch.Link,
			Description: ch.Description,
			Generator:   "feedsync",
			Items:       make([]rssItem, 0, len(posts)),
		},
	}

	base := strings.TrimRight(ch.Link, "/")
	for _, p := range posts {
		doc.Channel.Items = append(doc.Channel.Items, newItem(base, p))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write rss header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rss: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write rss: %w", err)
	}
	return nil
}

func newItem(base string, p model.Post) rssItem {
	item := rssItem{
		Title:       render.DisplayName(p.Username),
		Description: render.Escape(p.Content),
		GUID:        rssGUID{IsPermaLink: "false", Value: string(p.ID)},
	}
	if t, err := time.ParseInLocation(createdAtLayout, p.CreatedAt, time.UTC); err == nil {
		item.PubDate = t.Format(time.RFC1123Z)
	}
	if p.HasImage() {
		contentType := mime.TypeByExtension(path.Ext(p.ImagePath))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		item.Enclosure = &rssEnclosure{
			URL:    base + "/static/" + p.ImagePath,
			Length: "0",
			Type:   contentType,
		}
	}
	return item
}
