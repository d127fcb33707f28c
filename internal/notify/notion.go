package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jomei/notionapi"
)

// PageCreator is the part of the Notion API the inbox notifier needs
type PageCreator interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
}

// NotionPages creates pages with the Notion SDK
type NotionPages struct {
	client *notionapi.Client
}

// NewNotionPages creates a page creator with the provided integration token
func NewNotionPages(token string) *NotionPages {
	return &NotionPages{client: notionapi.NewClient(notionapi.Token(token))}
}

func (n *NotionPages) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// NotionNotifier files each event as a row in an operator inbox database.
// The database needs the columns Name (title), Kind (select), Client,
// Account ID, Run ID, Details (rich text) and Received (date).
type NotionNotifier struct {
	pages      PageCreator
	databaseID string
}

// NewNotionNotifier creates an inbox notifier for databaseID
func NewNotionNotifier(pages PageCreator, databaseID string) (*NotionNotifier, error) {
	if databaseID == "" {
		return nil, errors.New("notion notifier needs a database id")
	}
	return &NotionNotifier{pages: pages, databaseID: databaseID}, nil
}

func (n *NotionNotifier) Notify(ctx context.Context, e Event) error {
	if _, err := n.pages.CreatePage(ctx, n.databaseID, eventProperties(e)); err != nil {
		return fmt.Errorf("notion inbox: %w", err)
	}
	return nil
}

// Notion caps a rich text segment at 2000 characters
const notionTextLimit = 2000

func eventProperties(e Event) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(e.Subject),
		},
		"Kind": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(e.Kind),
			},
		},
	}

	if e.Client != "" {
		props["Client"] = notionapi.RichTextProperty{RichText: richText(e.Client)}
	}
	if e.AccountID != nil {
		props["Account ID"] = notionapi.RichTextProperty{
			RichText: richText(strconv.FormatInt(*e.AccountID, 10)),
		}
	}
	if e.RunID != "" {
		props["Run ID"] = notionapi.RichTextProperty{RichText: richText(e.RunID)}
	}
	if e.Body != "" {
		props["Details"] = notionapi.RichTextProperty{RichText: richText(e.Body)}
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	props["Received"] = notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: (*notionapi.Date)(&at),
		},
	}
	return props
}

func richText(s string) []notionapi.RichText {
	r := []rune(s)
	if len(r) > notionTextLimit {
		s = string(r[:notionTextLimit])
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: s,
			},
		},
	}
}
