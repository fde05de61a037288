package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/logger"
)

// NotionClient talks to the Notion API. Transport failures are reported as
// domain.ErrBackendUnavailable so callers can tell them apart from bad input.
type NotionClient struct {
	pages     notionapi.PageService
	databases notionapi.DatabaseService
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string) *NotionClient {
	c := notionapi.NewClient(notionapi.Token(token))
	return &NotionClient{pages: c.Page, databases: c.Database}
}

// CreatePage adds one sale page to the database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w: %v", domain.ErrBackendUnavailable, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("page_id", string(page.ID)).Msg("Notion page created")
	return page, nil
}

// QueryDatabase fetches one page of results. Pass the previous response's
// NextCursor as filter.StartCursor to continue.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.databases.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w: %v", domain.ErrBackendUnavailable, err)
	}
	return resp, nil
}

var _ NotionService = (*NotionClient)(nil)
