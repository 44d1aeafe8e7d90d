package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/leadscope/internal/application/leadgen"
	"github.com/turtacn/leadscope/internal/application/recommending"
	"github.com/turtacn/leadscope/internal/application/scoring"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
	"github.com/turtacn/leadscope/internal/testutil"
	"github.com/turtacn/leadscope/pkg/errors"
)

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := asOf.AddDate(0, 0, -n)
	return &t
}

// fixture builds a fresh snapshot on every call; the pipeline mutates
// records in place.
func fixture() *installbase.Snapshot {
	return &installbase.Snapshot{
		Assets: []*installbase.Asset{
			{SerialID: "SGH001", ProductName: "ProLiant DL380 Gen8", TerritoryID: "56012", AccountName: "Acme Corp",
				SupportStatus: "Warranty Expired", EOLDate: daysAgo(3653), Row: 1},
			{SerialID: "SGH002", ProductName: "Nimble HF20", TerritoryID: "56012", AccountName: "ACME Corporation",
				SupportStatus: "Active", EOLDate: daysAgo(-200), Description: "primary storage array", Row: 2},
			{SerialID: "Not Available", ProductName: "Aruba 2930F Switch", TerritoryID: "77001", AccountName: "Globex Inc",
				SupportStatus: "No Coverage", Row: 3},
			{SerialID: "Not Available", ProductName: "Aruba 2930F Switch", TerritoryID: "77001", AccountName: "Globex Inc",
				SupportStatus: "No Coverage", Row: 4},
		},
		Opportunities: []*installbase.Opportunity{
			{ID: "OPP-1", TerritoryID: "77001", AccountName: "Globex", ProductLine: "Networking", Row: 1},
		},
		Projects: []*installbase.Project{
			{ID: "P-1", PrimaryKey: "NOT AVAILABLE", SecondaryKey: "56012", PracticeCode: "Compute",
				StartDate: daysAgo(500), EndDate: daysAgo(400), SizeCategory: "Enterprise",
				Description: "server consolidation", Row: 1},
			{ID: "P-2", PrimaryKey: "OPP-1", SecondaryKey: "77001", PracticeCode: "Network",
				EndDate: daysAgo(100), Row: 2},
		},
		Catalog: []installbase.CatalogEntry{
			{Practice: "Compute", SubPractice: "Server", ServiceName: "ProLiant Upgrade Service", SKUCode: "H1A23"},
			{Practice: "Storage", SubPractice: "Array", ServiceName: "Storage Refresh Planning"},
			{Practice: "Network", SubPractice: "Switching", ServiceName: "Network Assessment"},
			{Practice: "General", ServiceName: "Proactive Health Check", SKUCode: "G1"},
		},
	}
}

func fixtureSource() Sources {
	return SnapshotFunc(func(context.Context) (*installbase.Snapshot, error) { return fixture(), nil })
}

func newTestConfig(t *testing.T) Config {
	t.Helper()
	detCfg := leadgen.DefaultConfig()
	detCfg.AsOf = asOf
	scCfg := scoring.DefaultConfig()
	scCfg.AsOf = asOf
	scorer, err := scoring.NewScorer(scCfg, nil)
	require.NoError(t, err)
	return Config{
		Registry:  account.NewRegistry(nil, account.DefaultFuzzyThreshold),
		Detector:  leadgen.NewDetector(detCfg, nil),
		Scorer:    scorer,
		Recommend: recommending.DefaultConfig(),
		Workers:   2,
		Logger:    testutil.NewMockLogger(),
	}
}

func newTestPipeline(t *testing.T, mutate func(*Config)) *Pipeline {
	t.Helper()
	cfg := newTestConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCollaborators(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Scorer = nil
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	cfg = newTestConfig(t)
	cfg.Registry = nil
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestRun_ExpiredTenYearOldAssetIsCritical(t *testing.T) {
	res, err := newTestPipeline(t, nil).Run(context.Background(), fixtureSource())
	require.NoError(t, err)

	leads := res.LeadsFor("SGH001")
	require.Len(t, leads, 2)
	types := []lead.Type{leads[0].Type, leads[1].Type}
	assert.ElementsMatch(t, []lead.Type{lead.TypeCoverageRenewal, lead.TypeHardwareRefresh}, types)
	for _, l := range leads {
		assert.Equal(t, installbase.RiskCritical, l.RiskLevel)
		assert.Equal(t, lead.PriorityCritical, l.Priority, "score %.2f", l.Score)
		assert.Equal(t, "56012", l.AccountID)
		assert.NotContains(t, l.Justification, "$")
	}
}

func TestRun_ProjectWithPlaceholderKeyKeepsAccountHistory(t *testing.T) {
	res, err := newTestPipeline(t, nil).Run(context.Background(), fixtureSource())
	require.NoError(t, err)

	links := res.Graph.Links("56012")
	require.NotNil(t, links)
	assert.Empty(t, links.Opportunities)
	require.Len(t, links.Projects, 1)
	assert.Equal(t, "P-1", links.Projects[0].ID)
	assert.Equal(t, "", links.Projects[0].PrimaryKey)

	assert.Equal(t, 2, res.Coverage.DenseLinked)
	assert.Equal(t, 1.0, res.Coverage.DenseRatio)
	assert.Equal(t, 1, res.Coverage.SparseLinked)
}

func TestRun_NormalizeStage(t *testing.T) {
	res, err := newTestPipeline(t, nil).Run(context.Background(), fixtureSource())
	require.NoError(t, err)

	serials := map[string]bool{}
	for _, a := range res.Snapshot.Assets {
		assert.False(t, serials[a.SerialID], "duplicate serial %s", a.SerialID)
		serials[a.SerialID] = true
		assert.NotEmpty(t, a.ProductFamily)
	}
	assert.Equal(t, installbase.FamilyCompute, res.Snapshot.Assets[0].ProductFamily)
	assert.Equal(t, installbase.FamilyNetwork, res.Snapshot.Assets[2].ProductFamily)

	byCode := res.Stats.IssuesByCode
	// Two placeholder serials and one placeholder project key.
	assert.Equal(t, 3, byCode[errors.ErrCodeMalformedIdentifier])
	assert.Equal(t, 4, res.Stats.Assets)
	assert.Equal(t, 2, res.Stats.Accounts)
	assert.Positive(t, res.Stats.NewAccountKeys)
	for _, stage := range Stages {
		_, ok := res.Stats.StageDurations[stage]
		assert.True(t, ok, stage)
	}
}

func TestRun_EveryAssetGetsBoundedUniqueRecommendations(t *testing.T) {
	res, err := newTestPipeline(t, nil).Run(context.Background(), fixtureSource())
	require.NoError(t, err)

	for _, a := range res.Snapshot.Assets {
		recs := res.RecommendationsFor(a.SerialID)
		require.NotEmpty(t, recs, a.SerialID)
		assert.LessOrEqual(t, len(recs), recommending.DefaultTopN)
		seen := map[string]bool{}
		for i, r := range recs {
			assert.False(t, seen[r.ServiceName], r.ServiceName)
			seen[r.ServiceName] = true
			assert.Equal(t, i+1, r.Rank)
		}
	}

	top := res.LeadsFor("SGH001")[0]
	for _, r := range res.RecommendationsFor("SGH001") {
		assert.Equal(t, top.ID, r.LeadID)
	}
}

func TestRun_LeadsAreSortedAndBounded(t *testing.T) {
	res, err := newTestPipeline(t, nil).Run(context.Background(), fixtureSource())
	require.NoError(t, err)
	require.NotEmpty(t, res.Leads)
	for i, l := range res.Leads {
		assert.GreaterOrEqual(t, l.Score, 0.0)
		assert.LessOrEqual(t, l.Score, 100.0)
		if i > 0 {
			prev := res.Leads[i-1]
			assert.True(t, prev.Score > l.Score || (prev.Score == l.Score && prev.ID < l.ID))
		}
	}
}

func exportBytes(t *testing.T, res *Result) ([]byte, []byte) {
	t.Helper()
	var leads, recs bytes.Buffer
	require.NoError(t, WriteLeadsCSV(&leads, res.Leads))
	require.NoError(t, WriteRecommendationsCSV(&recs, res.Recommendations))
	return leads.Bytes(), recs.Bytes()
}

func TestRun_RerunIsByteIdentical(t *testing.T) {
	p := newTestPipeline(t, func(c *Config) { c.Workers = 8 })
	first, err := p.Run(context.Background(), fixtureSource())
	require.NoError(t, err)
	again, err := p.Run(context.Background(), fixtureSource())
	require.NoError(t, err)
	fresh, err := newTestPipeline(t, func(c *Config) { c.Workers = 1 }).Run(context.Background(), fixtureSource())
	require.NoError(t, err)

	l1, r1 := exportBytes(t, first)
	l2, r2 := exportBytes(t, again)
	l3, r3 := exportBytes(t, fresh)
	assert.Equal(t, l1, l2)
	assert.Equal(t, r1, r2)
	assert.Equal(t, l1, l3)
	assert.Equal(t, r1, r3)
}

func TestRun_SourceFailure(t *testing.T) {
	metrics := &fakeMetrics{}
	p := newTestPipeline(t, func(c *Config) { c.Metrics = metrics })
	src := SnapshotFunc(func(context.Context) (*installbase.Snapshot, error) {
		return nil, errors.New(errors.ErrCodeSourceRead, "boom")
	})
	_, err := p.Execute(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceRead))
	assert.Equal(t, []bool{false}, metrics.runs)
	assert.Equal(t, 1, metrics.pushes)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(t, nil).Run(ctx, fixtureSource())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_Lookups(t *testing.T) {
	res, err := newTestPipeline(t, nil).Run(context.Background(), fixtureSource())
	require.NoError(t, err)

	a, err := res.Asset("SGH002")
	require.NoError(t, err)
	assert.Equal(t, "Nimble HF20", a.ProductName)

	_, err = res.Asset("missing")
	assert.True(t, errors.IsNotFound(err))

	recs, err := res.RecommendProject("P-1")
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
	assert.Equal(t, "P-1", recs[0].SubjectID)

	_, err = res.RecommendProject("P-404")
	assert.True(t, errors.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Sinks
// ─────────────────────────────────────────────────────────────────────────────

type mockLeadRepo struct{ mock.Mock }

func (m *mockLeadRepo) ReplaceAll(ctx context.Context, leads []*lead.Lead) error {
	return m.Called(ctx, leads).Error(0)
}

func (m *mockLeadRepo) List(ctx context.Context, f lead.Filter) ([]*lead.Lead, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]*lead.Lead), args.Error(1)
}

func (m *mockLeadRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockRecRepo struct{ mock.Mock }

func (m *mockRecRepo) ReplaceAll(ctx context.Context, recs []recommendation.Recommendation) error {
	return m.Called(ctx, recs).Error(0)
}

func (m *mockRecRepo) ListBySubject(ctx context.Context, id string) ([]recommendation.Recommendation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]recommendation.Recommendation), args.Error(1)
}

type mockUploader struct{ mock.Mock }

func (m *mockUploader) UploadFile(ctx context.Context, name, path string) error {
	return m.Called(ctx, name, path).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishLeads(ctx context.Context, at time.Time, leads []*lead.Lead) error {
	return m.Called(ctx, at, leads).Error(0)
}

type memoryStore struct {
	loaded   []account.Registration
	appended []account.Registration
	loads    int
}

func (s *memoryStore) Load(context.Context) ([]account.Registration, error) {
	s.loads++
	return s.loaded, nil
}

func (s *memoryStore) Append(_ context.Context, regs ...account.Registration) error {
	s.appended = append(s.appended, regs...)
	return nil
}

type fakeMetrics struct {
	stages  []string
	leads   int
	recs    int
	issues  int
	records map[string]int
	runs    []bool
	pushes  int
	pushErr error
}

func (f *fakeMetrics) ObserveStage(stage string, _ time.Duration) { f.stages = append(f.stages, stage) }
func (f *fakeMetrics) ObserveLead(_, _ string, _ float64)         { f.leads++ }
func (f *fakeMetrics) ObserveRecommendation(string)               { f.recs++ }
func (f *fakeMetrics) ObserveIssue(string)                        { f.issues++ }
func (f *fakeMetrics) SetCoverage(string, float64)                {}
func (f *fakeMetrics) RunCompleted(success bool, _ time.Duration) { f.runs = append(f.runs, success) }
func (f *fakeMetrics) Push(context.Context) error                 { f.pushes++; return f.pushErr }
func (f *fakeMetrics) SetRecords(table string, n int) {
	if f.records == nil {
		f.records = map[string]int{}
	}
	f.records[table] = n
}

type SinkSuite struct {
	suite.Suite
	ctx       context.Context
	dir       string
	leads     *mockLeadRepo
	recs      *mockRecRepo
	uploader  *mockUploader
	publisher *mockPublisher
	store     *memoryStore
	metrics   *fakeMetrics
	logger    *testutil.MockLogger
	pipeline  *Pipeline
}

func (s *SinkSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.leads = new(mockLeadRepo)
	s.recs = new(mockRecRepo)
	s.uploader = new(mockUploader)
	s.publisher = new(mockPublisher)
	s.store = &memoryStore{loaded: []account.Registration{{Seq: 1, Key: "acme", Raw: "Acme", Method: account.MethodNew}}}
	s.metrics = &fakeMetrics{}
	s.logger = testutil.NewMockLogger()
	s.pipeline = newTestPipeline(s.T(), func(c *Config) {
		c.Leads = s.leads
		c.Recommendations = s.recs
		c.Uploader = s.uploader
		c.Publisher = s.publisher
		c.RegistrationStore = s.store
		c.Metrics = s.metrics
		c.OutputDir = s.dir
		c.Logger = s.logger
	})
}

func (s *SinkSuite) TestExecute_AppliesEverySink() {
	s.leads.On("ReplaceAll", s.ctx, mock.Anything).Return(nil).Once()
	s.recs.On("ReplaceAll", s.ctx, mock.Anything).Return(nil).Once()
	s.uploader.On("UploadFile", s.ctx, LeadsFile, filepath.Join(s.dir, LeadsFile)).Return(nil).Once()
	s.uploader.On("UploadFile", s.ctx, RecommendationsFile, filepath.Join(s.dir, RecommendationsFile)).Return(nil).Once()
	s.publisher.On("PublishLeads", s.ctx, asOf, mock.Anything).Return(nil).Once()

	res, err := s.pipeline.Execute(s.ctx, fixtureSource())
	s.Require().NoError(err)

	s.leads.AssertExpectations(s.T())
	s.recs.AssertExpectations(s.T())
	s.uploader.AssertExpectations(s.T())
	s.publisher.AssertExpectations(s.T())

	data, err := os.ReadFile(filepath.Join(s.dir, LeadsFile))
	s.Require().NoError(err)
	want, _ := exportBytes(s.T(), res)
	s.Equal(want, data)

	// The restored key is not written back; only keys registered by the run.
	s.Equal(1, s.store.loads)
	s.NotEmpty(s.store.appended)
	for _, reg := range s.store.appended {
		s.NotEqual("acme", reg.Key)
	}
	s.Contains(s.pipeline.cfg.Registry.Keys(), "acme")

	s.Equal(Stages, s.metrics.stages)
	s.Equal(len(res.Leads), s.metrics.leads)
	s.Equal(len(res.Recommendations), s.metrics.recs)
	s.Equal(4, s.metrics.records["assets"])
	s.Equal([]bool{true}, s.metrics.runs)
	s.Equal(1, s.metrics.pushes)
	s.True(s.logger.HasMessage("info", "pipeline run complete"))
}

func (s *SinkSuite) TestExecute_SecondRunAppendsNothingNew() {
	s.leads.On("ReplaceAll", s.ctx, mock.Anything).Return(nil)
	s.recs.On("ReplaceAll", s.ctx, mock.Anything).Return(nil)
	s.uploader.On("UploadFile", s.ctx, mock.Anything, mock.Anything).Return(nil)
	s.publisher.On("PublishLeads", s.ctx, asOf, mock.Anything).Return(nil)

	_, err := s.pipeline.Execute(s.ctx, fixtureSource())
	s.Require().NoError(err)
	n := len(s.store.appended)
	_, err = s.pipeline.Execute(s.ctx, fixtureSource())
	s.Require().NoError(err)
	s.Equal(n, len(s.store.appended))
	s.Equal(1, s.store.loads)
}

func (s *SinkSuite) TestExecute_RepositoryFailureStopsSinks() {
	s.leads.On("ReplaceAll", s.ctx, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "tx aborted")).Once()

	_, err := s.pipeline.Execute(s.ctx, fixtureSource())
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))

	s.recs.AssertNotCalled(s.T(), "ReplaceAll", mock.Anything, mock.Anything)
	s.uploader.AssertNotCalled(s.T(), "UploadFile", mock.Anything, mock.Anything, mock.Anything)
	_, statErr := os.Stat(filepath.Join(s.dir, LeadsFile))
	s.True(os.IsNotExist(statErr))
	s.Equal([]bool{false}, s.metrics.runs)
}

func (s *SinkSuite) TestExecute_PublishFailure() {
	s.leads.On("ReplaceAll", s.ctx, mock.Anything).Return(nil)
	s.recs.On("ReplaceAll", s.ctx, mock.Anything).Return(nil)
	s.uploader.On("UploadFile", s.ctx, mock.Anything, mock.Anything).Return(nil)
	s.publisher.On("PublishLeads", s.ctx, asOf, mock.Anything).Return(errors.New(errors.ErrCodeExternalService, "broker down"))

	res, err := s.pipeline.Execute(s.ctx, fixtureSource())
	s.Require().Error(err)
	s.NotNil(res)
	s.True(errors.IsCode(err, errors.ErrCodePublishFailed))
}

func (s *SinkSuite) TestExecute_MetricsPushFailureIsNotFatal() {
	s.metrics.pushErr = errors.New(errors.ErrCodeExternalService, "gateway unreachable")
	s.leads.On("ReplaceAll", s.ctx, mock.Anything).Return(nil)
	s.recs.On("ReplaceAll", s.ctx, mock.Anything).Return(nil)
	s.uploader.On("UploadFile", s.ctx, mock.Anything, mock.Anything).Return(nil)
	s.publisher.On("PublishLeads", s.ctx, asOf, mock.Anything).Return(nil)

	_, err := s.pipeline.Execute(s.ctx, fixtureSource())
	s.NoError(err)
	s.True(s.logger.HasMessage("warn", "metrics push failed"))
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkSuite))
}
