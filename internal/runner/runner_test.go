package runner_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mockprompt "techlookup/internal/prompt/mock"
	"techlookup/internal/runner"
	"techlookup/pkg/domain"
	"techlookup/pkg/logger"
	"techlookup/pkg/lookup"
	mocklookup "techlookup/pkg/lookup/mock"
	"techlookup/pkg/metrics"
	"techlookup/pkg/serrors"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.Options{Environment: logger.DevelopmentEnvironment})
	m.Run()
}

func makeDomains(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://d%d.example.com", i)
	}

	return out
}

func resultsFor(urls []string) []domain.Result {
	out := make([]domain.Result, len(urls))
	for i, u := range urls {
		out[i] = domain.Result{URL: u, Raw: []byte(`{"url":"` + u + `"}`)}
	}

	return out
}

// fakeSleep records requested delays without waiting.
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) Sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)

	return nil
}

func TestChunkSize(t *testing.T) {
	cases := []struct {
		remaining, batch, credits, want int
	}{
		{remaining: 25, batch: 10, credits: 100, want: 10},
		{remaining: 3, batch: 10, credits: 100, want: 3},
		{remaining: 25, batch: 10, credits: 4, want: 4},
		{remaining: 25, batch: 10, credits: 0, want: 0},
		{remaining: 0, batch: 10, credits: 5, want: 0},
		{remaining: 5, batch: 10, credits: -2, want: 0},
	}

	for _, tc := range cases {
		got := runner.ChunkSize(tc.remaining, tc.batch, tc.credits)
		require.Equal(t, tc.want, got, "remaining=%d batch=%d credits=%d", tc.remaining, tc.batch, tc.credits)
		require.LessOrEqual(t, got, 10)
	}
}

func TestRunner_Run_CoversAllDomains(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 37} {
		t.Run(fmt.Sprintf("%d domains", n), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocklookup.NewMockClient(ctrl)
			prompter := mockprompt.NewMockPrompter(ctrl)

			credits := 1000
			var sum int
			client.EXPECT().Lookup(gomock.Any(), "key", gomock.Any()).
				DoAndReturn(func(_ context.Context, _ string, urls []string) (lookup.LookupRes, error) {
					require.LessOrEqual(t, len(urls), lookup.MaxBatchSize)
					sum += len(urls)
					credits -= len(urls)

					return lookup.LookupRes{Results: resultsFor(urls), CreditsRemaining: credits}, nil
				}).AnyTimes()

			r := runner.New(runner.Deps{Client: client, Prompter: prompter}, runner.Options{BatchSize: 10})
			domains := makeDomains(n)
			report, err := r.Run(context.Background(), "key", 1000, domains)
			require.NoError(t, err)
			require.Equal(t, n, sum)
			require.Equal(t, n, report.Processed)
			require.Len(t, report.Results, n)
			require.Equal(t, (n+9)/10, report.Requests)
			require.Equal(t, 1000-n, report.Credits)
			require.False(t, report.Aborted)
			for i, res := range report.Results {
				require.Equal(t, domains[i], res.URL)
			}
		})
	}
}

func TestRunner_Run_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := runner.New(runner.Deps{
		Client:   mocklookup.NewMockClient(ctrl),
		Prompter: mockprompt.NewMockPrompter(ctrl),
	}, runner.Options{})

	report, err := r.Run(context.Background(), "key", 5, nil)
	require.NoError(t, err)
	require.Empty(t, report.Results)
	require.Zero(t, report.Requests)
}

func TestRunner_Run_RespectsCredits(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	prompter := mockprompt.NewMockPrompter(ctrl)
	domains := makeDomains(12)

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "key", domains[0:3]).
			Return(lookup.LookupRes{Results: resultsFor(domains[0:3]), CreditsRemaining: 20}, nil),
		client.EXPECT().Lookup(gomock.Any(), "key", domains[3:12]).
			Return(lookup.LookupRes{Results: resultsFor(domains[3:12]), CreditsRemaining: 11}, nil),
	)

	r := runner.New(runner.Deps{Client: client, Prompter: prompter}, runner.Options{BatchSize: 10})
	report, err := r.Run(context.Background(), "key", 3, domains)
	require.NoError(t, err)
	require.Equal(t, 12, report.Processed)
	require.Equal(t, 2, report.Requests)
	require.Equal(t, 11, report.Credits)
}

func TestRunner_Run_BatchSizeClamped(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	domains := makeDomains(15)

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "key", domains[0:10]).
			Return(lookup.LookupRes{Results: resultsFor(domains[0:10]), CreditsRemaining: 90}, nil),
		client.EXPECT().Lookup(gomock.Any(), "key", domains[10:15]).
			Return(lookup.LookupRes{Results: resultsFor(domains[10:15]), CreditsRemaining: 85}, nil),
	)

	r := runner.New(runner.Deps{Client: client, Prompter: mockprompt.NewMockPrompter(ctrl)}, runner.Options{BatchSize: 50})
	report, err := r.Run(context.Background(), "key", 100, domains)
	require.NoError(t, err)
	require.Equal(t, 15, report.Processed)
}

func TestRunner_Run_RateLimitedRetriesSameChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	domains := makeDomains(4)
	sleeper := &fakeSleep{}

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "key", domains).
			Return(lookup.LookupRes{}, serrors.With(serrors.ErrRateLimited, "rate limited")),
		client.EXPECT().Lookup(gomock.Any(), "key", domains).
			Return(lookup.LookupRes{Results: resultsFor(domains), CreditsRemaining: 6}, nil),
	)

	m := metrics.New()
	r := runner.New(runner.Deps{
		Client:   client,
		Prompter: mockprompt.NewMockPrompter(ctrl),
		Metrics:  m,
		Sleep:    sleeper.Sleep,
	}, runner.Options{RetryDelay: 5 * time.Second})

	report, err := r.Run(context.Background(), "key", 10, domains)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays)
	require.Equal(t, 2, report.Requests)
	require.Equal(t, 4, report.Processed)
	require.Len(t, report.Results, 4)
}

func TestRunner_Run_RateLimitedCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	client.EXPECT().Lookup(gomock.Any(), "key", gomock.Any()).
		Return(lookup.LookupRes{}, serrors.With(serrors.ErrRateLimited, "rate limited"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := runner.New(runner.Deps{Client: client, Prompter: mockprompt.NewMockPrompter(ctrl)},
		runner.Options{RetryDelay: time.Hour})
	report, err := r.Run(ctx, "key", 10, makeDomains(2))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, report.Processed)
}

func TestRunner_Run_BadRequestStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	domains := makeDomains(15)

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "key", domains[0:10]).
			Return(lookup.LookupRes{Results: resultsFor(domains[0:10]), CreditsRemaining: 90}, nil),
		client.EXPECT().Lookup(gomock.Any(), "key", domains[10:15]).
			Return(lookup.LookupRes{}, serrors.With(serrors.ErrBadRequest, "invalid url")),
	)

	r := runner.New(runner.Deps{Client: client, Prompter: mockprompt.NewMockPrompter(ctrl)}, runner.Options{})
	report, err := r.Run(context.Background(), "key", 100, domains)
	require.ErrorIs(t, err, serrors.ErrBadRequest)
	require.Equal(t, 10, report.Processed)
	require.Equal(t, 2, report.Requests)
}

func TestRunner_Run_UnavailableKeepsPartial(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	domains := makeDomains(11)

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "key", domains[0:10]).
			Return(lookup.LookupRes{Results: resultsFor(domains[0:10]), CreditsRemaining: 90}, nil),
		client.EXPECT().Lookup(gomock.Any(), "key", domains[10:11]).
			Return(lookup.LookupRes{}, serrors.With(serrors.ErrUnavailable, "status 503")),
	)

	r := runner.New(runner.Deps{Client: client, Prompter: mockprompt.NewMockPrompter(ctrl)}, runner.Options{})
	report, err := r.Run(context.Background(), "key", 100, domains)
	require.ErrorIs(t, err, serrors.ErrUnavailable)
	require.Len(t, report.Results, 10)
}

func TestRunner_Run_KeepsResultsWithoutCreditCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	domains := makeDomains(12)

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "key", domains[0:10]).
			Return(lookup.LookupRes{Results: resultsFor(domains[0:10]), CreditsRemaining: 90}, nil),
		client.EXPECT().Lookup(gomock.Any(), "key", domains[10:12]).
			Return(lookup.LookupRes{Results: resultsFor(domains[10:12])},
				serrors.With(serrors.ErrInternal, "could not read remaining credits")),
	)

	m := metrics.New()
	r := runner.New(runner.Deps{Client: client, Prompter: mockprompt.NewMockPrompter(ctrl), Metrics: m}, runner.Options{})
	report, err := r.Run(context.Background(), "key", 100, domains)
	require.ErrorIs(t, err, serrors.ErrInternal)
	require.Len(t, report.Results, 12)
	require.Equal(t, 12, report.Processed)
	require.Equal(t, domains[11], report.Results[11].URL)
}

func TestRunner_Run_EmptyKeyAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	prompter := mockprompt.NewMockPrompter(ctrl)
	domains := makeDomains(8)

	client.EXPECT().Lookup(gomock.Any(), "key", domains[0:5]).
		Return(lookup.LookupRes{Results: resultsFor(domains[0:5]), CreditsRemaining: 0}, nil)
	prompter.EXPECT().Ask(gomock.Any(), runner.NewKeyQuestion).Return("", nil)

	r := runner.New(runner.Deps{Client: client, Prompter: prompter}, runner.Options{})
	report, err := r.Run(context.Background(), "key", 5, domains)
	require.NoError(t, err)
	require.True(t, report.Aborted)
	require.Equal(t, 5, report.Processed)
	require.Len(t, report.Results, 5)
	require.Zero(t, report.Credits)
}

func TestRunner_Run_ReplacesKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	prompter := mockprompt.NewMockPrompter(ctrl)
	domains := makeDomains(8)

	gomock.InOrder(
		client.EXPECT().Lookup(gomock.Any(), "old", domains[0:2]).
			Return(lookup.LookupRes{Results: resultsFor(domains[0:2]), CreditsRemaining: 0}, nil),
		prompter.EXPECT().Ask(gomock.Any(), runner.NewKeyQuestion).Return("  new \n", nil),
		client.EXPECT().Balance(gomock.Any(), "new").Return(lookup.Balance{Credits: 50}, nil),
		client.EXPECT().Lookup(gomock.Any(), "new", domains[2:8]).
			Return(lookup.LookupRes{Results: resultsFor(domains[2:8]), CreditsRemaining: 44}, nil),
	)

	m := metrics.New()
	r := runner.New(runner.Deps{Client: client, Prompter: prompter, Metrics: m}, runner.Options{})
	report, err := r.Run(context.Background(), "old", 2, domains)
	require.NoError(t, err)
	require.False(t, report.Aborted)
	require.Equal(t, 8, report.Processed)
	require.Equal(t, 44, report.Credits)
}

func TestRunner_Run_NoPromptWhenFinished(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	domains := makeDomains(3)

	client.EXPECT().Lookup(gomock.Any(), "key", domains).
		Return(lookup.LookupRes{Results: resultsFor(domains), CreditsRemaining: 0}, nil)

	r := runner.New(runner.Deps{Client: client, Prompter: mockprompt.NewMockPrompter(ctrl)}, runner.Options{})
	report, err := r.Run(context.Background(), "key", 3, domains)
	require.NoError(t, err)
	require.False(t, report.Aborted)
	require.Equal(t, 3, report.Processed)
}

func TestRunner_Run_InvalidReplacementKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	prompter := mockprompt.NewMockPrompter(ctrl)
	domains := makeDomains(4)

	client.EXPECT().Lookup(gomock.Any(), "key", domains[0:1]).
		Return(lookup.LookupRes{Results: resultsFor(domains[0:1]), CreditsRemaining: 0}, nil)
	prompter.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("bogus", nil)
	client.EXPECT().Balance(gomock.Any(), "bogus").
		Return(lookup.Balance{}, serrors.With(serrors.ErrUnauthorized, "invalid API key"))

	r := runner.New(runner.Deps{Client: client, Prompter: prompter}, runner.Options{})
	report, err := r.Run(context.Background(), "key", 1, domains)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
	require.Len(t, report.Results, 1)
}

func TestRunner_Run_PromptError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocklookup.NewMockClient(ctrl)
	prompter := mockprompt.NewMockPrompter(ctrl)
	domains := makeDomains(4)
	boom := errors.New("stdin closed")

	client.EXPECT().Lookup(gomock.Any(), "key", domains[0:1]).
		Return(lookup.LookupRes{Results: resultsFor(domains[0:1]), CreditsRemaining: 0}, nil)
	prompter.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("", boom)

	r := runner.New(runner.Deps{Client: client, Prompter: prompter}, runner.Options{})
	_, err := r.Run(context.Background(), "key", 1, domains)
	require.ErrorIs(t, err, boom)
}

func TestRunner_Run_NoCreditsUpFront(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := runner.New(runner.Deps{
		Client:   mocklookup.NewMockClient(ctrl),
		Prompter: mockprompt.NewMockPrompter(ctrl),
	}, runner.Options{})

	_, err := r.Run(context.Background(), "key", 0, makeDomains(1))
	require.ErrorIs(t, err, serrors.ErrNoCredit)
}
