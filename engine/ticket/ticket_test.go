package ticket_test

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/monitoring"
	"github.com/credportal/credportal/engine/ticket"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.August, 20, 15, 4, 5, 0, time.UTC)

var ticketColumns = []string{
	"id", "title", "description", "status", "requester_id", "type_id", "category_id",
	"created_at", "updated_at", "requester_name", "type_name", "category_name",
}

func doc(urls ...string) json.RawMessage {
	blocks := []string{`{"type":"paragraph","data":{"text":"Printer on floor 2 is jammed"}}`}
	for _, u := range urls {
		blocks = append(blocks, fmt.Sprintf(`{"type":"image","data":{"file":{"url":%q}}}`, u))
	}
	return json.RawMessage(`{"blocks":[` + strings.Join(blocks, ",") + `]}`)
}

func ticketRows(mock pgxmock.PgxPoolIface, description json.RawMessage) *pgxmock.Rows {
	name := "Help desk"
	return mock.NewRows(ticketColumns).AddRow(
		int64(5), "Printer jammed", description, ticket.StatusOpen, int64(1), int32(2), nil,
		now, now, nil, &name, nil,
	)
}

type fixture struct {
	mock    pgxmock.PgxPoolIface
	fs      afero.Fs
	store   attachment.Store
	metrics *monitoring.Metrics
	svc     *ticket.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	fs := afero.NewMemMapFs()
	store := attachment.NewFSStore(fs)
	layout := attachment.NewLayout(attachment.DefaultURLPrefix)
	metrics := monitoring.New()
	return &fixture{
		mock:    mock,
		fs:      fs,
		store:   store,
		metrics: metrics,
		svc: ticket.NewService(mock, store, layout, attachment.NewReconciler(store, layout, metrics),
			core.FixedClock(now)),
	}
}

func (f *fixture) seed(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, f.store.Write(context.Background(), key, []byte("png")))
	}
}

func (f *fixture) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := f.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

const (
	keyA = "uploads/ticket/2025/8/5/a.png"
	keyB = "uploads/ticket/2025/8/5/b.png"
	keyC = "uploads/ticket/2025/8/5/c.png"
)

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	t.Run("Should remove only images dropped from the description", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, keyA, keyB, keyC)
		oldDoc := doc("/"+keyA, "/"+keyB, "https://cdn.example.com/logo.png")
		newDoc := doc("/"+keyB, "/"+keyC)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN ticket_categories tc ON tc.id = t.category_id WHERE t.id = $1 LIMIT 1")).
			WithArgs(int64(5)).
			WillReturnRows(ticketRows(f.mock, oldDoc))
		f.mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET description = $1, updated_at = now() WHERE id = $2 RETURNING") +
			`.*` + regexp.QuoteMeta("(SELECT name FROM ticket_types WHERE id = type_id) AS type_name")).
			WithArgs(newDoc, int64(5)).
			WillReturnRows(ticketRows(f.mock, newDoc))
		f.mock.ExpectCommit()

		updated, err := f.svc.Update(ctx, 5, &ticket.Patch{Description: &newDoc})
		require.NoError(t, err)
		assert.JSONEq(t, string(newDoc), string(updated.Description))
		require.NotNil(t, updated.TypeName)
		assert.Equal(t, "Help desk", *updated.TypeName)
		assert.False(t, f.exists(t, keyA))
		assert.True(t, f.exists(t, keyB))
		assert.True(t, f.exists(t, keyC))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrphanCounter(monitoring.ResultSuccess)))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
	t.Run("Should keep files when the update fails", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, keyA)
		newDoc := doc()
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("WHERE t.id = \\$1").WithArgs(int64(5)).
			WillReturnRows(ticketRows(f.mock, doc("/"+keyA)))
		f.mock.ExpectQuery("UPDATE tickets").WithArgs(newDoc, int64(5)).
			WillReturnRows(f.mock.NewRows(ticketColumns))
		f.mock.ExpectRollback()

		_, err := f.svc.Update(ctx, 5, &ticket.Patch{Description: &newDoc})
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.True(t, f.exists(t, keyA))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
	t.Run("Should skip the lookup when the description is untouched", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, keyA)
		status := ticket.StatusResolved
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET status = $1, updated_at = now() WHERE id = $2")).
			WithArgs(ticket.StatusResolved, int64(5)).
			WillReturnRows(ticketRows(f.mock, doc()))
		f.mock.ExpectCommit()

		_, err := f.svc.Update(ctx, 5, &ticket.Patch{Status: &status})
		require.NoError(t, err)
		assert.True(t, f.exists(t, keyA))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
	t.Run("Should reject a malformed description before touching storage", func(t *testing.T) {
		f := newFixture(t)
		bad := json.RawMessage(`{"blocks":{}}`)
		_, err := f.svc.Update(ctx, 5, &ticket.Patch{Description: &bad})
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
	t.Run("Should reject an unknown status", func(t *testing.T) {
		f := newFixture(t)
		status := ticket.Status(12)
		_, err := f.svc.Update(ctx, 5, &ticket.Patch{Status: &status})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	t.Run("Should remove every local image of the deleted ticket", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, keyA, keyB)
		f.mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM tickets WHERE id = $1 RETURNING")).
			WithArgs(int64(5)).
			WillReturnRows(ticketRows(f.mock, doc("/"+keyA, "/"+keyB, "/static/logo.png")))
		_, err := f.svc.Delete(ctx, 5)
		require.NoError(t, err)
		assert.False(t, f.exists(t, keyA))
		assert.False(t, f.exists(t, keyB))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
	t.Run("Should report a missing ticket", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery("DELETE FROM tickets").WithArgs(int64(5)).
			WillReturnRows(f.mock.NewRows(ticketColumns))
		_, err := f.svc.Delete(ctx, 5)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestService_UploadImage(t *testing.T) {
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	t.Run("Should store the image under the ticket and return its URL", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery("WHERE t.id = \\$1").WithArgs(int64(5)).WillReturnRows(ticketRows(f.mock, doc()))
		url, err := f.svc.UploadImage(ctx, 5, "", png)
		require.NoError(t, err)
		assert.Regexp(t, `^/uploads/ticket/2025/8/5/[0-9A-Za-z]{27}\.png$`, url)
		assert.True(t, f.exists(t, strings.TrimPrefix(url, "/")))
	})
	t.Run("Should not store images for unknown tickets", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery("WHERE t.id = \\$1").WithArgs(int64(9)).WillReturnRows(f.mock.NewRows(ticketColumns))
		_, err := f.svc.UploadImage(ctx, 9, "a.png", png)
		assert.ErrorIs(t, err, core.ErrNotFound)
		ok, err := afero.DirExists(f.fs, "uploads")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("Should reject empty uploads", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UploadImage(ctx, 5, "a.png", nil)
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	t.Run("Should open tickets with an empty document by default", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := ticket.NewRepository(mock)
		mock.ExpectQuery(regexp.QuoteMeta(
			"INSERT INTO tickets (category_id,description,requester_id,status,title,type_id) VALUES ($1,$2,$3,$4,$5,$6)",
		)).
			WithArgs(pgxmock.AnyArg(), json.RawMessage(`{"blocks":[]}`), int64(1), ticket.StatusOpen, "Printer jammed", int32(2)).
			WillReturnRows(ticketRows(mock, doc()))
		created, err := repo.Create(ctx, &ticket.Input{Title: "Printer jammed", RequesterID: 1, TypeID: 2})
		require.NoError(t, err)
		assert.Equal(t, ticket.StatusOpen, created.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should search across joined names", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := ticket.NewRepository(mock)
		where := "WHERE (t.title::text ILIKE $1 OR t.description::text ILIKE $2 OR u.full_name::text ILIKE $3 OR tt.name::text ILIKE $4 OR tc.name::text ILIKE $5)"
		pattern := []any{"%printer%", "%printer%", "%printer%", "%printer%", "%printer%"}
		mock.ExpectQuery(regexp.QuoteMeta(where)).WithArgs(pattern...).
			WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY t.created_at DESC, t.id DESC LIMIT 10 OFFSET 0")).
			WithArgs(pattern...).
			WillReturnRows(ticketRows(mock, doc()))
		page, err := repo.GetPaginated(ctx, core.PageRequest{Filter: "printer", Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "Help desk", *page.Data[0].TypeName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should keep lookup names unique", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ticket_categories (name) VALUES ($1) RETURNING id, name")).
			WithArgs("Hardware").
			WillReturnRows(mock.NewRows([]string{"id", "name"}).AddRow(int32(1), "Hardware"))
		category, err := ticket.NewCategoryRepository(mock).Create(ctx, &ticket.NameInput{Name: "Hardware"})
		require.NoError(t, err)
		assert.Equal(t, "Hardware", category.Name)
	})
}
