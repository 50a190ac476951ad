package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/campaign"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
		db.Close()
	})
	return New(db), mock
}

var segmentCols = []string{"id", "uid", "name", "kind", "entity_id", "entity_type", "searched_keyword", "active", "created_at"}

func TestCreateSegment(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_lists`)).
		WithArgs("abc1", "Most Used Payment Methods - Visa", "most_used_payment_methods",
			sql.NullInt64{Int64: 7, Valid: true}, sql.NullString{String: audience.EntityPaymentMethod, Valid: true}, sql.NullString{}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, created))

	seg, err := s.CreateSegment(context.Background(), audience.Segment{
		UID:    "abc1",
		Name:   "Most Used Payment Methods - Visa",
		Kind:   audience.KindMostUsedPaymentMethods,
		Entity: audience.Entity{ID: 7, Type: audience.EntityPaymentMethod},
	})
	if err != nil {
		t.Fatal(err)
	}
	if seg.ID != 11 || !seg.Active || !seg.CreatedAt.Equal(created) {
		t.Fatalf("unexpected segment %+v", seg)
	}
}

func TestAttachSegmentUID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_lists SET uid = $2`)).
		WithArgs(int64(11), "list-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_lists SET uid = $2`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_lists SET uid = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.AttachSegmentUID(context.Background(), 11, "list-9"); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachSegmentUID(context.Background(), 12, "list-9"); !errors.Is(err, audience.ErrDuplicateUID) {
		t.Fatalf("want ErrDuplicateUID, got %v", err)
	}
	if err := s.AttachSegmentUID(context.Background(), 99, "list-x"); !errors.Is(err, audience.ErrSegmentNotFound) {
		t.Fatalf("want ErrSegmentNotFound, got %v", err)
	}
}

func TestCreateSegment_DuplicateUID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_lists`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateSegment(context.Background(), audience.Segment{UID: "X", Name: "n", Kind: audience.KindLeastActiveUsers})
	if !errors.Is(err, audience.ErrDuplicateUID) {
		t.Fatalf("want ErrDuplicateUID, got %v", err)
	}
}

func TestFindSegmentByUID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE lower(uid) = lower($1)`)).
		WithArgs("ABC1").
		WillReturnRows(sqlmock.NewRows(segmentCols).
			AddRow(3, "abc1", "Discount Seekers", "most_discounted_orders", nil, nil, nil, false, time.Now()))

	seg, err := s.FindSegmentByUID(context.Background(), "ABC1")
	if err != nil {
		t.Fatal(err)
	}
	if seg.Kind != audience.KindMostDiscountedOrders || seg.Active || !seg.Entity.IsZero() {
		t.Fatalf("unexpected segment %+v", seg)
	}
}

func TestFindSegmentByUID_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketing_lists`)).
		WillReturnRows(sqlmock.NewRows(segmentCols))

	_, err := s.FindSegmentByUID(context.Background(), "nope")
	if !errors.Is(err, audience.ErrSegmentNotFound) {
		t.Fatalf("want ErrSegmentNotFound, got %v", err)
	}
}

func TestDeleteSegment_InUse(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.DeleteSegment(context.Background(), 3)
	if !errors.Is(err, audience.ErrSegmentInUse) {
		t.Fatalf("want ErrSegmentInUse, got %v", err)
	}
}

func TestDeleteSegment(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM marketing_lists WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.DeleteSegment(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
}

func TestSetSegmentActive_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_lists SET active`)).
		WithArgs(int64(9), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.SetSegmentActive(context.Background(), 9, false); !errors.Is(err, audience.ErrSegmentNotFound) {
		t.Fatalf("want ErrSegmentNotFound, got %v", err)
	}
}

func TestCurrentMembership(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`c.user_id IS NOT NULL`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"email", "user_id"}).
			AddRow("a@x.io", 1).
			AddRow("b@x.io", 2))

	got, err := s.CurrentMembership(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["b@x.io"] != 2 {
		t.Fatalf("unexpected membership %v", got)
	}
}

func TestContactUIDsByEmails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`c.email = ANY($2)`)).
		WithArgs(int64(4), pq.Array([]string{"a@x.io"})).
		WillReturnRows(sqlmock.NewRows([]string{"uid"}).AddRow("h1"))

	got, err := s.ContactUIDsByEmails(context.Background(), 4, []string{"a@x.io"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "h1" {
		t.Fatalf("unexpected uids %v", got)
	}

	none, err := s.ContactUIDsByEmails(context.Background(), 4, nil)
	if err != nil || none != nil {
		t.Fatalf("empty input should not query, got %v %v", none, err)
	}
}

func expectCommitListSync(mock sqlmock.Sqlmock, membershipRows int64) {
	uid := int64(1)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_contacts (uid, email, user_id)`)).
		WithArgs("h1", "a@x.io", sql.NullInt64{Int64: uid, Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(50))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (list_id, contact_id) DO NOTHING`)).
		WithArgs(int64(4), int64(50)).
		WillReturnResult(sqlmock.NewResult(0, membershipRows))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM marketing_contacts_lists m`)).
		WithArgs(int64(4), pq.Array([]string{"gone@x.io"})).
		WillReturnResult(sqlmock.NewResult(0, membershipRows))
	mock.ExpectCommit()
}

func TestCommitListSync_Idempotent(t *testing.T) {
	s, mock := newMock(t)
	uid := int64(1)
	contacts := []audience.Contact{{UID: "h1", Email: "a@x.io", UserID: &uid}}

	expectCommitListSync(mock, 1)
	added, removed, err := s.CommitListSync(context.Background(), 4, contacts, []string{"gone@x.io"})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 || removed != 1 {
		t.Fatalf("first run: added=%d removed=%d", added, removed)
	}

	// Replaying the same sync finds every row already in place.
	expectCommitListSync(mock, 0)
	added, removed, err = s.CommitListSync(context.Background(), 4, contacts, []string{"gone@x.io"})
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 || removed != 0 {
		t.Fatalf("replay: added=%d removed=%d", added, removed)
	}
}

func TestCommitListSync_RollbackOnError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_contacts`)).
		WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, _, err := s.CommitListSync(context.Background(), 4, []audience.Contact{{UID: "h1", Email: "a@x.io"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

var campaignCols = []string{"id", "uid", "name", "mailchimp_type", "list_id", "scheduled_at", "stats", "reports", "checkpoints_scheduled", "created_at"}

func TestSaveCampaign_Created(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	opened := at.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_campaigns`)).
		WithArgs("C1", "Spring", "regular", int64(4), at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(21, at))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO marketing_recipients`)).
		WithArgs(int64(21), "h1", opened).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO marketing_recipients`)).
		WithArgs(int64(21), "h2", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	c, created, err := s.SaveCampaign(context.Background(),
		campaign.Campaign{UID: "C1", Name: "Spring", Type: "regular", SegmentID: 4, ScheduledAt: at},
		[]campaign.RecipientOpen{{ContactUID: "h1", OpenedAt: &opened}, {ContactUID: "h2"}})
	if err != nil {
		t.Fatal(err)
	}
	if !created || c.ID != 21 {
		t.Fatalf("created=%v id=%d", created, c.ID)
	}
}

func TestSaveCampaign_Existing(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_campaigns`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketing_campaigns WHERE lower(uid) = lower($1)`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow(21, "C1", "Spring", "regular", 4, at, []byte(`{"emails_sent":10}`), nil, true, at))
	mock.ExpectCommit()

	c, created, err := s.SaveCampaign(context.Background(),
		campaign.Campaign{UID: "c1", Name: "Spring", Type: "regular", SegmentID: 4, ScheduledAt: at},
		[]campaign.RecipientOpen{{ContactUID: "h1"}})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("existing campaign reported as created")
	}
	if c.ID != 21 || c.Stats == nil || c.Stats.EmailsSent != 10 || !c.CheckpointsScheduled {
		t.Fatalf("unexpected campaign %+v", c)
	}
}

func TestReserveCampaign_New(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (request_key) DO NOTHING`)).
		WithArgs("req-1", "Spring", "regular", int64(4), at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(30, at))

	c, err := s.ReserveCampaign(context.Background(), "req-1",
		campaign.Campaign{Name: "Spring", Type: "regular", SegmentID: 4, ScheduledAt: at})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 30 || c.UID != "" || c.CheckpointsScheduled {
		t.Fatalf("unexpected campaign %+v", c)
	}
}

func TestReserveCampaign_Redelivered(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO marketing_campaigns (request_key`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketing_campaigns WHERE request_key = $1`)).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow(30, "mc-7", "Spring", "regular", 4, at, nil, nil, false, at))

	c, err := s.ReserveCampaign(context.Background(), "req-1",
		campaign.Campaign{Name: "Spring", Type: "regular", SegmentID: 4, ScheduledAt: at})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 30 || c.UID != "mc-7" {
		t.Fatalf("unexpected campaign %+v", c)
	}
}

func TestAttachUIDAndMarkCheckpoints(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_campaigns SET uid = $2 WHERE id = $1`)).
		WithArgs(int64(30), "mc-7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_campaigns SET checkpoints_scheduled = true WHERE id = $1`)).
		WithArgs(int64(30)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.AttachCampaignUID(context.Background(), 30, "mc-7"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkCheckpointsScheduled(context.Background(), 30); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateCampaignStats(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_campaigns SET stats = $2 WHERE id = $1`)).
		WithArgs(int64(21), []byte(`{"emails_sent":10,"emails_bounced":2,"emails_opened":5,"emails_delivered":8}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE marketing_campaigns SET stats`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	st := campaign.Stats{EmailsSent: 10, EmailsBounced: 2, EmailsOpened: 5, EmailsDelivered: 8}
	if err := s.UpdateCampaignStats(context.Background(), 21, st); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateCampaignStats(context.Background(), 99, st); !errors.Is(err, campaign.ErrCampaignNotFound) {
		t.Fatalf("want ErrCampaignNotFound, got %v", err)
	}
}

func TestGetCampaign_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketing_campaigns WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(campaignCols))

	if _, err := s.GetCampaign(context.Background(), 5); !errors.Is(err, campaign.ErrCampaignNotFound) {
		t.Fatalf("want ErrCampaignNotFound, got %v", err)
	}
}

func TestPageViewCounts(t *testing.T) {
	s, mock := newMock(t)
	since := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM spree_page_events`)).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"actor_id", "actor_type", "count"}).
			AddRow(1, audience.UserPrincipalType, 4).
			AddRow(nil, nil, 9))

	got, err := s.PageViewCounts(context.Background(), since)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ActorID == nil || *got[0].ActorID != 1 || got[1].ActorID != nil {
		t.Fatalf("unexpected counts %+v", got)
	}
}

func TestUserEmails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM spree_users WHERE id = ANY($1)`)).
		WithArgs(pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "a@x.io"))

	got, err := s.UserEmails(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[1] != "a@x.io" {
		t.Fatalf("unexpected emails %v", got)
	}
}

func TestReportCounts(t *testing.T) {
	s, mock := newMock(t)
	since := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM spree_orders`)).
		WithArgs(pq.Array([]int64{1, 2}), since, audience.UserPrincipalType, audience.EntityProduct).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).AddRow(1, 2, 0, 2))

	got, err := s.ReportCounts(context.Background(), []int64{1, 2}, since)
	if err != nil {
		t.Fatal(err)
	}
	if got[audience.ReportPurchases] != 2 || got[audience.ReportLogIns] != 1 || got[audience.ReportCartAdditions] != 0 {
		t.Fatalf("unexpected reports %v", got)
	}

	empty, err := s.ReportCounts(context.Background(), nil, since)
	if err != nil || len(empty) != 4 {
		t.Fatalf("empty recipients: %v %v", empty, err)
	}
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)
	for _, stmt := range schema {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
}
