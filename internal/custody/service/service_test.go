package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"zimmet/internal/custody/metrics"
	"zimmet/internal/custody/models"
	"zimmet/internal/custody/service"
	"zimmet/internal/custody/service/mocks"
	"zimmet/internal/custody/store"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/audit"
	auditmemory "zimmet/pkg/platform/audit/store/memory"
	"zimmet/pkg/platform/sentinel"
	"zimmet/pkg/requestcontext"
)

type CustodyServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *store.InMemoryStore
	events   *auditmemory.InMemoryStore
	users    *mocks.MockUserDirectory
	notifier *mocks.MockNotifier
	service  *service.Service

	base    time.Time
	parties map[id.UserID]*models.Party
	mu      sync.Mutex
	// notified records every user id passed to the notifier.
	notified  []id.UserID
	notifyErr error
	// onFindParty, when set, runs inside every directory lookup.
	onFindParty func()

	alice, bob, carol, dave, admin id.UserID
}

func TestCustodyServiceSuite(t *testing.T) {
	suite.Run(t, new(CustodyServiceSuite))
}

func (s *CustodyServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.users = mocks.NewMockUserDirectory(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.notified = nil
	s.notifyErr = nil
	s.onFindParty = nil

	s.alice, s.bob, s.carol, s.dave, s.admin = id.NewUserID(), id.NewUserID(), id.NewUserID(), id.NewUserID(), id.NewUserID()
	s.parties = map[id.UserID]*models.Party{
		s.alice: party(s.alice, "Alice Aydın", true, false),
		s.bob:   party(s.bob, "Bob Bulut", true, false),
		s.carol: party(s.carol, "Carol Çelik", true, false),
		s.dave:  party(s.dave, "Dave Demir", false, false),
		s.admin: party(s.admin, "Ada Admin", true, true),
	}

	s.users.EXPECT().FindParty(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, uid id.UserID) (*models.Party, error) {
			if s.onFindParty != nil {
				s.onFindParty()
			}
			p, ok := s.parties[uid]
			if !ok {
				return nil, sentinel.ErrNotFound
			}
			c := *p
			return &c, nil
		}).AnyTimes()
	s.users.EXPECT().Summaries(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ids []id.UserID) (map[id.UserID]models.UserSummary, error) {
			out := make(map[id.UserID]models.UserSummary, len(ids))
			for _, uid := range ids {
				if p, ok := s.parties[uid]; ok {
					out[uid] = p.UserSummary
				}
			}
			return out, nil
		}).AnyTimes()
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ids []id.UserID) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.notified = append(s.notified, ids...)
			return s.notifyErr
		}).AnyTimes()

	s.service = service.New(s.store, service.NewMemoryTx(s.store, time.Second), s.users,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithMetrics(metrics.New(prometheus.NewRegistry())),
		service.WithNotifier(s.notifier),
		service.WithEvents(s.events),
	)
}

func party(uid id.UserID, name string, active, admin bool) *models.Party {
	return &models.Party{
		UserSummary: models.UserSummary{ID: uid, FullName: name, Email: name + "@example.com"},
		Active:      active,
		Admin:       admin,
	}
}

// at returns a context whose clock reads base+offset.
func (s *CustodyServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.base.Add(offset))
}

func (s *CustodyServiceSuite) create(number string, to, from id.UserID) *models.TransactionView {
	v, err := s.service.CreateCustody(s.at(0), number, to, from, "")
	s.Require().NoError(err)
	return v
}

func (s *CustodyServiceSuite) holderOf(number string) *id.UserID {
	doc, err := s.store.FindDocument(context.Background(), id.DocumentNumber(number))
	s.Require().NoError(err)
	return doc.CurrentHolderID
}

func (s *CustodyServiceSuite) eventTypes() []audit.EventType {
	var out []audit.EventType
	for _, e := range s.events.Pending() {
		out = append(out, e.EventType)
	}
	return out
}

func (s *CustodyServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "unexpected error: %v", err)
}

func (s *CustodyServiceSuite) TestExampleScenario() {
	ctx := s.at(0)

	row1, err := s.service.CreateCustody(ctx, "500", s.bob, s.alice, "")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, row1.Status)
	s.Equal(s.alice, row1.FromUserID)
	s.Equal(s.bob, row1.ToUserID)
	s.Equal("Bob Bulut", row1.ToUser.FullName)

	accepted, err := s.service.Accept(s.at(time.Minute), row1.ID, s.bob)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, accepted.Status)
	s.Equal(s.bob, *s.holderOf("500"))

	row2, err := s.service.ReturnBack(s.at(2*time.Minute), row1.ID, s.bob, "done")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, row2.Status)
	s.Equal(models.KindReturnRequest, row2.Kind)
	s.Equal(s.bob, row2.FromUserID)
	s.Equal(s.alice, row2.ToUserID)
	s.Equal("done", row2.Note)

	orig, err := s.store.FindTransaction(context.Background(), row1.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusReturned, orig.Status)
	s.Equal(s.bob, *s.holderOf("500"), "return does not move the holder")

	_, err = s.service.Accept(s.at(3*time.Minute), row2.ID, s.alice)
	s.Require().NoError(err)
	s.Equal(s.alice, *s.holderOf("500"))

	doc, err := s.service.Archive(s.at(4*time.Minute), "500", models.Actor{UserID: s.alice}, "filed")
	s.Require().NoError(err)
	s.Equal(models.DocumentArchived, doc.Status)
	s.Require().NotNil(doc.ArchivedByUserID)
	s.Equal(s.alice, *doc.ArchivedByUserID)
	s.Equal("filed", doc.ArchiveNote)

	timeline, err := s.service.Timeline(context.Background(), "500")
	s.Require().NoError(err)
	s.Require().Len(timeline, 3)
	s.Equal(models.TimelineTransaction, timeline[0].Type)
	s.Equal(row1.ID, timeline[0].Transaction.ID)
	s.Equal(row2.ID, timeline[1].Transaction.ID)
	s.Equal(models.TimelineArchived, timeline[2].Type)
	s.Equal("filed", timeline[2].Note)

	s.Equal([]audit.EventType{
		audit.EventCustodyCreated,
		audit.EventCustodyAccepted,
		audit.EventCustodyReturned,
		audit.EventCustodyAccepted,
		audit.EventDocumentArchived,
	}, s.eventTypes())
}

func (s *CustodyServiceSuite) TestCreateCustody() {
	s.Run("numeric document number succeeds", func() {
		v, err := s.service.CreateCustody(s.at(0), "123", s.bob, s.alice, "  for review  ")
		s.Require().NoError(err)
		s.Equal(id.DocumentNumber("123"), v.DocumentNumber)
		s.Equal("for review", v.Note)
		s.Equal(models.KindNormal, v.Kind)
	})

	s.Run("malformed document numbers fail validation", func() {
		for _, raw := range []string{"123abc", "", "   ", "12-3"} {
			_, err := s.service.CreateCustody(s.at(0), raw, s.bob, s.alice, "")
			s.requireCode(err, dErrors.CodeValidation)
		}
	})

	s.Run("self assignment always fails validation", func() {
		for _, raw := range []string{"124", "abc", ""} {
			_, err := s.service.CreateCustody(s.at(0), raw, s.alice, s.alice, "")
			s.requireCode(err, dErrors.CodeValidation)
		}
	})

	s.Run("unknown target fails validation", func() {
		_, err := s.service.CreateCustody(s.at(0), "125", id.NewUserID(), s.alice, "")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("inactive target fails validation", func() {
		_, err := s.service.CreateCustody(s.at(0), "126", s.dave, s.alice, "")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("second pending row for a document conflicts", func() {
		s.create("127", s.bob, s.alice)
		_, err := s.service.CreateCustody(s.at(0), "127", s.carol, s.alice, "")
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("archived document cannot be offered", func() {
		t := s.create("128", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)
		_, err = s.service.Archive(s.at(0), "128", models.Actor{UserID: s.bob}, "closed")
		s.Require().NoError(err)

		_, err = s.service.CreateCustody(s.at(0), "128", s.carol, s.bob, "")
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *CustodyServiceSuite) TestConcurrentCreateLeavesOnePending() {
	targets := []id.UserID{s.bob, s.carol, s.admin, s.bob, s.carol, s.admin}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, to := range targets {
		wg.Add(1)
		go func(to id.UserID) {
			defer wg.Done()
			_, err := s.service.CreateCustody(s.at(0), "700", to, s.alice, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}(to)
	}
	wg.Wait()

	s.Equal(1, ok)
	s.Equal(len(targets)-1, conflicts)
	rows, err := s.store.ListByDocument(context.Background(), "700")
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *CustodyServiceSuite) TestAcceptAuthorization() {
	t := s.create("200", s.bob, s.alice)

	for _, actor := range []id.UserID{s.alice, s.carol, s.admin} {
		_, err := s.service.Accept(s.at(0), t.ID, actor)
		s.requireCode(err, dErrors.CodeForbidden)
	}
	s.Nil(s.holderOf("200"))

	_, err := s.service.Accept(s.at(0), id.NewTransactionID(), s.bob)
	s.requireCode(err, dErrors.CodeNotFound)

	_, err = s.service.Accept(s.at(0), t.ID, s.bob)
	s.Require().NoError(err)

	_, err = s.service.Accept(s.at(0), t.ID, s.bob)
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *CustodyServiceSuite) TestRejectAndCancelKeepHolder() {
	first := s.create("300", s.bob, s.alice)
	_, err := s.service.Accept(s.at(0), first.ID, s.bob)
	s.Require().NoError(err)

	offer := s.create("300", s.carol, s.bob)
	_, err = s.service.Reject(s.at(0), offer.ID, s.bob)
	s.requireCode(err, dErrors.CodeForbidden)
	rejected, err := s.service.Reject(s.at(time.Minute), offer.ID, s.carol)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)
	s.Require().NotNil(rejected.ResolvedAt)
	s.Equal(s.bob, *s.holderOf("300"))

	offer = s.create("300", s.carol, s.bob)
	_, err = s.service.Cancel(s.at(0), offer.ID, s.carol)
	s.requireCode(err, dErrors.CodeForbidden)
	cancelled, err := s.service.Cancel(s.at(0), offer.ID, s.bob)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)
	s.Equal(s.bob, *s.holderOf("300"))

	_, err = s.service.Cancel(s.at(0), offer.ID, s.bob)
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *CustodyServiceSuite) TestReturnBack() {
	s.Run("requires a note", func() {
		t := s.create("400", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)

		_, err = s.service.ReturnBack(s.at(0), t.ID, s.bob, "   ")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("missing or foreign rows win over a blank note", func() {
		_, err := s.service.ReturnBack(s.at(0), id.NewTransactionID(), s.bob, "")
		s.requireCode(err, dErrors.CodeNotFound)

		t := s.create("406", s.bob, s.alice)
		_, err = s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)
		_, err = s.service.ReturnBack(s.at(0), t.ID, s.carol, "")
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("only the addressee may return", func() {
		t := s.create("401", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)

		_, err = s.service.ReturnBack(s.at(0), t.ID, s.alice, "back")
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("pending row cannot be returned", func() {
		t := s.create("402", s.bob, s.alice)
		_, err := s.service.ReturnBack(s.at(0), t.ID, s.bob, "back")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("former holder cannot return after handing on", func() {
		t := s.create("403", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)
		next := s.create("403", s.carol, s.bob)
		_, err = s.service.Accept(s.at(0), next.ID, s.carol)
		s.Require().NoError(err)

		_, err = s.service.ReturnBack(s.at(0), t.ID, s.bob, "back")
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("inactive original sender is rejected", func() {
		s.parties[s.dave].Active = true
		t := s.create("404", s.bob, s.dave)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)
		s.parties[s.dave].Active = false

		_, err = s.service.ReturnBack(s.at(0), t.ID, s.bob, "back")
		s.requireCode(err, dErrors.CodeValidation)

		orig, err := s.store.FindTransaction(context.Background(), t.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, orig.Status)
	})

	s.Run("produces exactly two changed rows", func() {
		t := s.create("405", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)

		req, err := s.service.ReturnBack(s.at(time.Minute), t.ID, s.bob, "back")
		s.Require().NoError(err)

		rows, err := s.store.ListByDocument(context.Background(), "405")
		s.Require().NoError(err)
		s.Require().Len(rows, 2)
		s.Equal(models.StatusReturned, rows[0].Status)
		s.Equal(req.ID, rows[1].ID)
		s.Equal(models.StatusPending, rows[1].Status)
		s.Equal(rows[0].ToUserID, rows[1].FromUserID)
		s.Equal(rows[0].FromUserID, rows[1].ToUserID)
	})
}

func (s *CustodyServiceSuite) TestMarkSeenSurvivesConcurrentFailure() {
	s.parties[s.dave].Active = true
	t := s.create("410", s.bob, s.dave)
	_, err := s.service.Accept(s.at(0), t.ID, s.bob)
	s.Require().NoError(err)
	s.parties[s.dave].Active = false

	entered, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	s.onFindParty = func() {
		once.Do(func() { close(entered) })
		<-release
	}

	failed := make(chan error, 1)
	go func() {
		_, err := s.service.ReturnBack(s.at(time.Minute), t.ID, s.bob, "back")
		failed <- err
	}()
	<-entered

	s.Require().NoError(s.service.MarkSeen(s.at(time.Minute), s.alice, "INCOMING"))
	close(release)
	s.requireCode(<-failed, dErrors.CodeValidation)

	marks, err := s.store.SeenMarks(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Equal(s.base.Add(time.Minute), marks[models.InboxIncoming])
}

func (s *CustodyServiceSuite) TestArchive() {
	s.Run("requires a note", func() {
		s.create("600", s.bob, s.alice)
		_, err := s.service.Archive(s.at(0), "600", models.Actor{UserID: s.admin, Admin: true}, "")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("unknown document is not found", func() {
		_, err := s.service.Archive(s.at(0), "601", models.Actor{UserID: s.admin, Admin: true}, "x")
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("blocked while a row is pending", func() {
		s.create("602", s.bob, s.alice)
		_, err := s.service.Archive(s.at(0), "602", models.Actor{UserID: s.admin, Admin: true}, "x")
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("only holder or admin", func() {
		t := s.create("603", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)

		_, err = s.service.Archive(s.at(0), "603", models.Actor{UserID: s.carol}, "x")
		s.requireCode(err, dErrors.CodeForbidden)
		_, err = s.service.Archive(s.at(0), "603", models.Actor{UserID: s.admin, Admin: true}, "x")
		s.Require().NoError(err)
	})

	s.Run("twice fails and keeps the holder pointer", func() {
		t := s.create("604", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)
		_, err = s.service.Archive(s.at(0), "604", models.Actor{UserID: s.bob}, "filed")
		s.Require().NoError(err)

		_, err = s.service.Archive(s.at(0), "604", models.Actor{UserID: s.bob}, "again")
		s.requireCode(err, dErrors.CodeValidation)
		s.Equal(s.bob, *s.holderOf("604"))

		detail, err := s.service.GetDocument(context.Background(), "604")
		s.Require().NoError(err)
		s.Nil(detail.Holder)
	})
}

func (s *CustodyServiceSuite) TestUnarchive() {
	t := s.create("610", s.bob, s.alice)
	_, err := s.service.Accept(s.at(0), t.ID, s.bob)
	s.Require().NoError(err)

	_, err = s.service.Unarchive(s.at(0), "610", models.Actor{UserID: s.admin, Admin: true})
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.Archive(s.at(time.Minute), "610", models.Actor{UserID: s.bob}, "filed")
	s.Require().NoError(err)

	_, err = s.service.Unarchive(s.at(2*time.Minute), "610", models.Actor{UserID: s.bob})
	s.requireCode(err, dErrors.CodeForbidden)

	doc, err := s.service.Unarchive(s.at(2*time.Minute), "610", models.Actor{UserID: s.admin, Admin: true})
	s.Require().NoError(err)
	s.Equal(models.DocumentActive, doc.Status)
	s.Require().NotNil(doc.UnarchivedByUserID)
	s.Equal(s.admin, *doc.UnarchivedByUserID)

	_, err = s.service.Archive(s.at(3*time.Minute), "610", models.Actor{UserID: s.bob}, "filed again")
	s.Require().NoError(err)

	timeline, err := s.service.Timeline(context.Background(), "610")
	s.Require().NoError(err)
	var kinds []models.TimelineEntryType
	for _, e := range timeline {
		kinds = append(kinds, e.Type)
	}
	s.Equal([]models.TimelineEntryType{
		models.TimelineTransaction,
		models.TimelineArchived,
		models.TimelineUnarchived,
		models.TimelineArchived,
	}, kinds)
	s.Equal("Ada Admin", timeline[2].By.FullName)
}

func (s *CustodyServiceSuite) TestTimelineUnknownDocument() {
	_, err := s.service.Timeline(context.Background(), "999")
	s.requireCode(err, dErrors.CodeNotFound)

	_, err = s.service.Timeline(context.Background(), "nine")
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *CustodyServiceSuite) TestMyTransactionsNewestFirst() {
	first := s.create("800", s.bob, s.alice)
	second, err := s.service.CreateCustody(s.at(time.Minute), "801", s.alice, s.carol, "")
	s.Require().NoError(err)
	s.create("802", s.bob, s.carol)

	rows, err := s.service.MyTransactions(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(second.ID, rows[0].ID)
	s.Equal(first.ID, rows[1].ID)
	s.Equal("Carol Çelik", rows[0].FromUser.FullName)
}

func (s *CustodyServiceSuite) TestUnreadCounters() {
	offer := s.create("900", s.bob, s.alice)
	_, err := s.service.Accept(s.at(time.Minute), offer.ID, s.bob)
	s.Require().NoError(err)
	_, err = s.service.ReturnBack(s.at(2*time.Minute), offer.ID, s.bob, "back")
	s.Require().NoError(err)
	s.create("901", s.alice, s.carol)
	mine := s.create("902", s.carol, s.alice)
	_, err = s.service.Reject(s.at(3*time.Minute), mine.ID, s.carol)
	s.Require().NoError(err)

	counts, err := s.service.Unread(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Equal(models.UnreadCounts{Incoming: 1, Returns: 1, Rejections: 1}, counts)

	s.Require().NoError(s.service.MarkSeen(s.at(4*time.Minute), s.alice, "incoming"))
	counts, err = s.service.Unread(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Equal(models.UnreadCounts{Incoming: 0, Returns: 1, Rejections: 1}, counts)

	s.Require().NoError(s.service.MarkSeen(s.at(4*time.Minute), s.alice, "INCOMING"))
	s.Require().NoError(s.service.MarkSeen(s.at(4*time.Minute), s.alice, "red"))
	counts, err = s.service.Unread(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Equal(models.UnreadCounts{Incoming: 0, Returns: 1, Rejections: 0}, counts)

	s.requireCode(s.service.MarkSeen(s.at(0), s.alice, "outbox"), dErrors.CodeValidation)

	carolCounts, err := s.service.Unread(context.Background(), s.carol)
	s.Require().NoError(err)
	s.Equal(0, carolCounts.Rejections)
}

func (s *CustodyServiceSuite) TestOverdueReport() {
	old, err := s.service.CreateCustody(s.at(-16*time.Minute), "1000", s.bob, s.alice, "")
	s.Require().NoError(err)
	_, err = s.service.CreateCustody(s.at(-5*time.Minute), "1001", s.bob, s.alice, "")
	s.Require().NoError(err)
	resolved, err := s.service.CreateCustody(s.at(-30*time.Minute), "1002", s.bob, s.alice, "")
	s.Require().NoError(err)
	_, err = s.service.Reject(s.at(-29*time.Minute), resolved.ID, s.bob)
	s.Require().NoError(err)

	items, err := s.service.OverdueReport(s.at(0))
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(old.ID, items[0].ID)
	s.GreaterOrEqual(items[0].OverdueMinutes, 15)
	s.Equal(16, items[0].OverdueMinutes)
	s.Equal("Alice Aydın", items[0].FromUser.FullName)
}

func (s *CustodyServiceSuite) TestActiveAndHoldingsReports() {
	a := s.create("1100", s.bob, s.alice)
	_, err := s.service.Accept(s.at(time.Minute), a.ID, s.bob)
	s.Require().NoError(err)
	b := s.create("1101", s.bob, s.carol)
	_, err = s.service.Accept(s.at(2*time.Minute), b.ID, s.bob)
	s.Require().NoError(err)
	c := s.create("1102", s.carol, s.alice)
	_, err = s.service.Accept(s.at(3*time.Minute), c.ID, s.carol)
	s.Require().NoError(err)
	_, err = s.service.Archive(s.at(4*time.Minute), "1102", models.Actor{UserID: s.carol}, "done")
	s.Require().NoError(err)
	s.create("1103", s.carol, s.alice)

	active, err := s.service.ActiveReport(context.Background())
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	byNumber := map[id.DocumentNumber]models.ActiveAssignment{}
	for _, item := range active {
		byNumber[item.DocumentNumber] = item
	}
	s.Equal(s.bob, byNumber["1100"].Holder.ID)
	s.Require().NotNil(byNumber["1100"].Transaction)
	s.Equal(a.ID, byNumber["1100"].Transaction.ID)
	s.Require().NotNil(byNumber["1101"].Since)
	s.Equal(s.base.Add(2*time.Minute), *byNumber["1101"].Since)

	holdings, err := s.service.HoldingsReport(context.Background())
	s.Require().NoError(err)
	s.Require().Len(holdings, 1)
	s.Equal(s.bob, holdings[0].Holder.ID)
	s.Equal([]id.DocumentNumber{"1100", "1101"}, holdings[0].Documents)
}

func (s *CustodyServiceSuite) TestNotifications() {
	s.Run("counterpart is notified after each mutation", func() {
		t := s.create("1200", s.bob, s.alice)
		_, err := s.service.Accept(s.at(0), t.ID, s.bob)
		s.Require().NoError(err)
		s.Equal([]id.UserID{s.bob, s.alice}, s.notified)
	})

	s.Run("notifier failure does not fail the operation", func() {
		s.notified = nil
		s.notifyErr = errors.New("redis down")

		t, err := s.service.CreateCustody(s.at(0), "1201", s.bob, s.alice, "")
		s.Require().NoError(err)
		s.Equal([]id.UserID{s.bob}, s.notified)

		rows, err := s.store.ListByDocument(context.Background(), "1201")
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal(t.ID, rows[0].ID)
	})

	s.Run("failed operations notify nobody", func() {
		s.notified = nil
		s.notifyErr = nil
		_, err := s.service.CreateCustody(s.at(0), "1202", s.alice, s.alice, "")
		s.Require().Error(err)
		s.Empty(s.notified)
	})
}

func (s *CustodyServiceSuite) TestOutboxOnePerSuccessNonePerFailure() {
	t := s.create("1300", s.bob, s.alice)
	s.Len(s.events.Pending(), 1)

	_, err := s.service.CreateCustody(s.at(0), "1300", s.carol, s.alice, "")
	s.Require().Error(err)
	_, err = s.service.Accept(s.at(0), t.ID, s.carol)
	s.Require().Error(err)
	s.Len(s.events.Pending(), 1)

	_, err = s.service.Accept(s.at(0), t.ID, s.bob)
	s.Require().NoError(err)
	s.Equal([]audit.EventType{audit.EventCustodyCreated, audit.EventCustodyAccepted}, s.eventTypes())
}

// failingEvents fails every append so the unit of work must roll back.
type failingEvents struct{}

func (failingEvents) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func (s *CustodyServiceSuite) TestEventFailureRollsBack() {
	svc := service.New(s.store, service.NewMemoryTx(s.store, time.Second), s.users,
		service.WithEvents(failingEvents{}),
	)

	_, err := svc.CreateCustody(s.at(0), "1400", s.bob, s.alice, "")
	s.requireCode(err, dErrors.CodeInternal)

	_, err = s.store.FindDocument(context.Background(), "1400")
	s.ErrorIs(err, sentinel.ErrNotFound)
	pending, err := s.store.HasPending(context.Background(), "1400")
	s.Require().NoError(err)
	s.False(pending)
}

func (s *CustodyServiceSuite) TestFindOrCreateDocument() {
	doc, err := s.service.FindOrCreateDocument(s.at(0), "1500")
	s.Require().NoError(err)
	s.Equal(models.DocumentActive, doc.Status)
	s.Nil(doc.CurrentHolderID)

	again, err := s.service.FindOrCreateDocument(s.at(time.Hour), "1500")
	s.Require().NoError(err)
	s.Equal(doc.CreatedAt, again.CreatedAt)

	_, err = s.service.FindOrCreateDocument(s.at(0), " ")
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.GetDocument(context.Background(), "1501")
	s.requireCode(err, dErrors.CodeNotFound)
}
