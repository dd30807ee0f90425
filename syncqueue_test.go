package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type SyncQueueSuite struct {
	suite.Suite

	ctrl    *gomock.Controller
	fetcher *MockFetcher
	queue   *SyncQueue
	session *Session

	mu       sync.Mutex
	log      []string
	replayed []QueuedEvent
	failures []error
	dropped  [][]QueuedEvent
	signal   chan struct{}
}

func TestSyncQueueSuite(t *testing.T) {
	suite.Run(t, new(SyncQueueSuite))
}

func (s *SyncQueueSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = NewMockFetcher(s.ctrl)
	s.session = NewSession(WithSessionID("s1"))
	s.log, s.replayed, s.failures, s.dropped = nil, nil, nil, nil
	s.signal = make(chan struct{}, 128)

	s.queue = &SyncQueue{
		entries: make(map[string]*syncEntry),
		fetcher: s.fetcher,
		spawn: func(fn func(context.Context)) {
			go fn(context.Background())
		},
		resolved: func(_ context.Context, g *Guild) {
			s.record("resolved " + g.ID)
		},
		replay: func(_ context.Context, _ *Guild, ev QueuedEvent) {
			s.mu.Lock()
			s.replayed = append(s.replayed, ev)
			s.mu.Unlock()
			s.record("replay " + string(ev.Payload))
		},
		failed: func(_ context.Context, _ string, err error, events []QueuedEvent) {
			s.mu.Lock()
			s.failures = append(s.failures, err)
			s.dropped = append(s.dropped, events)
			s.mu.Unlock()
			s.record("failed")
		},
	}
}

func (s *SyncQueueSuite) record(entry string) {
	s.mu.Lock()
	s.log = append(s.log, entry)
	s.mu.Unlock()
	s.signal <- struct{}{}
}

// await blocks until n more callbacks fired.
func (s *SyncQueueSuite) await(n int) {
	for range n {
		select {
		case <-s.signal:
		case <-time.After(2 * time.Second):
			s.FailNow("timed out waiting for sync queue callbacks")
		}
	}
}

func (s *SyncQueueSuite) entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func seqPayload(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
}

func (s *SyncQueueSuite) TestSingleFetchForManyEnqueues() {
	const n = 25
	release := make(chan struct{})
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
		DoAndReturn(func(ctx context.Context, id string) (*Guild, error) {
			<-release
			return &Guild{ID: id}, nil
		}).
		Times(1)

	started := 0
	for i := range n {
		if s.queue.Enqueue("g1", s.session, seqPayload(i), ReplayFull(TagMessageCreate)) {
			started++
		}
	}
	s.Assert().Equal(1, started)

	pending, ok := s.queue.Pending("g1")
	s.Require().True(ok)
	s.Assert().Equal(n, pending)

	close(release)
	s.await(n + 1)

	want := []string{"resolved g1"}
	for i := range n {
		want = append(want, "replay "+string(seqPayload(i)))
	}
	s.Assert().Equal(want, s.entries())

	s.Eventually(func() bool {
		_, ok := s.queue.Pending("g1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func (s *SyncQueueSuite) TestConcurrentEnqueuesFetchOnce() {
	const n = 50
	release := make(chan struct{})
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
		DoAndReturn(func(ctx context.Context, id string) (*Guild, error) {
			<-release
			return &Guild{ID: id}, nil
		}).
		Times(1)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.queue.Enqueue("g1", s.session, seqPayload(i), ReplayFull(TagMessageCreate))
		}()
	}
	wg.Wait()
	close(release)
	s.await(n + 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Assert().Len(s.replayed, n)
}

func (s *SyncQueueSuite) TestFailureDropsEventsAndAllowsRefetch() {
	boom := errors.New("boom")
	release := make(chan struct{})
	gomock.InOrder(
		s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
			DoAndReturn(func(ctx context.Context, id string) (*Guild, error) {
				<-release
				return nil, boom
			}),
		s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
			Return(&Guild{ID: "g1"}, nil),
	)

	s.queue.Enqueue("g1", s.session, seqPayload(1), ReplayFull(TagMessageCreate))
	s.queue.Enqueue("g1", s.session, seqPayload(2), ReplayFull(TagMessageCreate))
	close(release)
	s.await(1)

	s.Assert().Equal([]string{"failed"}, s.entries())
	s.mu.Lock()
	s.Require().Len(s.failures, 1)
	s.Assert().ErrorIs(s.failures[0], boom)
	var fe *FetchError
	s.Require().ErrorAs(s.failures[0], &fe)
	s.Assert().Equal("g1", fe.GuildID)
	s.Assert().Len(s.dropped[0], 2)
	s.mu.Unlock()

	_, ok := s.queue.Pending("g1")
	s.Assert().False(ok, "entry removed after failure")

	s.Assert().True(s.queue.Enqueue("g1", s.session, seqPayload(3), ReplayFull(TagMessageCreate)))
	s.await(2)
	s.Assert().Equal([]string{"failed", "resolved g1", "replay " + string(seqPayload(3))}, s.entries())
}

func (s *SyncQueueSuite) TestReplayIfSkipsMissingSubResource() {
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
		Return(&Guild{ID: "g1", Channels: []Channel{{ID: "c1"}}}, nil)

	release := make(chan struct{})
	s.queue.spawn = func(fn func(context.Context)) {
		go func() {
			<-release
			fn(context.Background())
		}()
	}

	s.queue.Enqueue("g1", s.session, seqPayload(1), ReplayIf(TagChannelUpdate, HasChannel, "c1"))
	s.queue.Enqueue("g1", s.session, seqPayload(2), ReplayIf(TagChannelUpdate, HasChannel, "gone"))
	s.queue.Enqueue("g1", s.session, seqPayload(3), ReplayFull(TagChannelCreate))
	close(release)
	s.await(3)

	s.Assert().Equal([]string{
		"resolved g1",
		"replay " + string(seqPayload(1)),
		"replay " + string(seqPayload(3)),
	}, s.entries())
}

func (s *SyncQueueSuite) TestEventsQueuedDuringReplayAreDrained() {
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").Return(&Guild{ID: "g1"}, nil)

	replay := s.queue.replay
	var once sync.Once
	s.queue.replay = func(ctx context.Context, g *Guild, ev QueuedEvent) {
		replay(ctx, g, ev)
		once.Do(func() {
			s.Assert().False(s.queue.Enqueue("g1", s.session, seqPayload(9), ReplayFull(TagMessageCreate)))
		})
	}

	s.queue.Enqueue("g1", s.session, seqPayload(1), ReplayFull(TagMessageCreate))
	s.await(3)

	s.Assert().Equal([]string{
		"resolved g1",
		"replay " + string(seqPayload(1)),
		"replay " + string(seqPayload(9)),
	}, s.entries())
}

func (s *SyncQueueSuite) TestFetchNilGuildIsNotFound() {
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").Return(nil, nil)

	_, err := s.queue.Fetch(context.Background(), "g1")

	s.Assert().ErrorIs(err, ErrNotFound)
}

func (s *SyncQueueSuite) TestFetchReturnsCopy() {
	fetched := &Guild{ID: "g1", Roles: []Role{{ID: "r1"}}}
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").Return(fetched, nil)

	g, err := s.queue.Fetch(context.Background(), "g1")
	s.Require().NoError(err)
	g.Roles[0].Name = "changed"

	s.Assert().Empty(fetched.Roles[0].Name)
}

func (s *SyncQueueSuite) TestFetchHonoursContext() {
	release := make(chan struct{})
	defer close(release)
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
		DoAndReturn(func(ctx context.Context, id string) (*Guild, error) {
			<-release
			return &Guild{ID: id}, nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.queue.Fetch(ctx, "g1")

	s.Assert().ErrorIs(err, context.DeadlineExceeded)
}

func (s *SyncQueueSuite) TestFetchWithoutFetcher() {
	s.queue.fetcher = nil

	_, err := s.queue.Fetch(context.Background(), "g1")

	s.Assert().ErrorIs(err, ErrNoFetcher)
}

func (s *SyncQueueSuite) TestSharedFetchOutlivesFirstCaller() {
	release := make(chan struct{})
	started := make(chan struct{})
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
		DoAndReturn(func(ctx context.Context, id string) (*Guild, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &Guild{ID: id}, nil
		}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.queue.Fetch(ctx, "g1")
		first <- err
	}()
	<-started

	second := make(chan *Guild, 1)
	go func() {
		g, err := s.queue.Fetch(context.Background(), "g1")
		s.Assert().NoError(err)
		second <- g
	}()

	cancel()
	s.Assert().ErrorIs(<-first, context.Canceled)

	// Let the second caller join the flight before it completes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	select {
	case g := <-second:
		s.Require().NotNil(g)
		s.Assert().Equal("g1", g.ID)
	case <-time.After(2 * time.Second):
		s.Fail("joined fetch did not finish")
	}
}

func (s *SyncQueueSuite) TestBaseContextEndsFetch() {
	base, cancel := context.WithCancel(context.Background())
	s.queue.base = base
	s.fetcher.EXPECT().FetchGuild(gomock.Any(), "g1").
		DoAndReturn(func(ctx context.Context, id string) (*Guild, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	cancel()
	_, err := s.queue.Fetch(context.Background(), "g1")

	s.Assert().ErrorIs(err, context.Canceled)
}
