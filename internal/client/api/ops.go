package api

import (
	"context"
	"fmt"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/version"
	"github.com/driftsync/driftsync/pkg/api"
)

// Write отправляет батч записей одним ops-конвертом.
// Реализует write.Executor.
func (c *Client) Write(ctx context.Context, req api.WriteRequest) (*api.WriteResponse, error) {
	resp, err := c.DoOps(ctx, api.OpsRequest{
		Meta: api.Meta{V: 1},
		Ops: []api.Op{{
			OpID:  version.NewEntryID(),
			Kind:  api.OpKindWrite,
			Write: &req,
		}},
	})
	if err != nil {
		return nil, err
	}

	result, err := singleResult(resp)
	if err != nil {
		return nil, err
	}
	if result.Write == nil {
		return nil, fmt.Errorf("ops response is missing write data")
	}
	return result.Write, nil
}

// FetchRecord читает авторитетное состояние записи с сервера.
// Возвращает (nil, nil), если записи нет. Реализует write.Fetcher.
func (c *Client) FetchRecord(ctx context.Context, resource, id string) (*models.Record, error) {
	resp, err := c.DoOps(ctx, api.OpsRequest{
		Meta: api.Meta{V: 1},
		Ops: []api.Op{{
			OpID:  version.NewEntryID(),
			Kind:  api.OpKindQuery,
			Query: &api.QueryOp{Resource: resource, ID: id},
		}},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Results) != 1 {
		return nil, fmt.Errorf("ops response has %d results, want 1", len(resp.Results))
	}
	result := resp.Results[0]
	if result.Error != nil {
		if result.Error.Code == api.CodeNotFound {
			return nil, nil
		}
		return nil, &StatusError{Status: result.Error.HTTPStatus(), API: result.Error}
	}
	if result.Query == nil || len(result.Query.Records) == 0 {
		return nil, nil
	}

	rec := result.Query.Records[0]
	return models.RecordFromAPI(&rec), nil
}

// FetchRecords читает авторитетное состояние нескольких записей ресурса.
// Отсутствующие id молча пропускаются.
func (c *Client) FetchRecords(ctx context.Context, resource string, ids []string) ([]*models.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := c.DoOps(ctx, api.OpsRequest{
		Meta: api.Meta{V: 1},
		Ops: []api.Op{{
			OpID:  version.NewEntryID(),
			Kind:  api.OpKindQuery,
			Query: &api.QueryOp{Resource: resource, IDs: ids},
		}},
	})
	if err != nil {
		return nil, err
	}

	result, err := singleResult(resp)
	if err != nil {
		return nil, err
	}
	if result.Query == nil {
		return nil, fmt.Errorf("ops response is missing query data")
	}

	records := make([]*models.Record, 0, len(result.Query.Records))
	for i := range result.Query.Records {
		records = append(records, models.RecordFromAPI(&result.Query.Records[i]))
	}
	return records, nil
}

// Pull запрашивает изменения change log с указанного курсора.
func (c *Client) Pull(ctx context.Context, cursor int64, limit int, resources []string) (*api.PullData, error) {
	resp, err := c.DoOps(ctx, api.OpsRequest{
		Meta: api.Meta{V: 1},
		Ops: []api.Op{{
			OpID: version.NewEntryID(),
			Kind: api.OpKindPull,
			Pull: &api.PullOp{Cursor: cursor, Limit: limit, Resources: resources},
		}},
	})
	if err != nil {
		return nil, err
	}

	result, err := singleResult(resp)
	if err != nil {
		return nil, err
	}
	if result.Pull == nil {
		return nil, fmt.Errorf("ops response is missing pull data")
	}
	return result.Pull, nil
}

func singleResult(resp *api.OpsResponse) (*api.OpResult, error) {
	if len(resp.Results) != 1 {
		return nil, fmt.Errorf("ops response has %d results, want 1", len(resp.Results))
	}
	result := resp.Results[0]
	if result.Error != nil {
		return nil, &StatusError{Status: result.Error.HTTPStatus(), API: result.Error}
	}
	return &result, nil
}
