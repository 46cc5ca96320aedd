package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/locaposty/internal/ai"
	"github.com/maheshrc27/locaposty/internal/cache"
	"github.com/maheshrc27/locaposty/internal/gmb"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
)

var testSecret = "0123456789abcdef0123456789abcdef"

// fakePostRepo keeps posts in memory.
type fakePostRepo struct {
	mu        sync.Mutex
	posts     map[string]*models.Post
	getErr    error
	markErr   error
	statusErr error
}

var _ repository.PostRepository = (*fakePostRepo)(nil)

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: map[string]*models.Post{}}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) get(id string) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *fakePostRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.get(id), nil
}

func (r *fakePostRepo) Create(_ context.Context, _ *sql.Tx, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) Update(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) ListByLocation(_ context.Context, locationID string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.LocationID == locationID && p.Status != models.PostStatusDeleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) UpdateStatus(_ context.Context, id string, status models.PostStatus, scheduledAt *time.Time) error {
	if r.statusErr != nil {
		return r.statusErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[id]
	p.Status = status
	p.ErrorMessage = ""
	if scheduledAt != nil {
		p.ScheduledAt = scheduledAt
	}
	return nil
}

func (r *fakePostRepo) MarkPublished(_ context.Context, id, externalPostName string, at time.Time) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[id]
	if p.Status != models.PostStatusDraft && p.Status != models.PostStatusScheduled {
		return nil
	}
	p.Status = models.PostStatusPublished
	p.ScheduledAt = &at
	p.PublishedAt = &at
	p.ExternalPostName = externalPostName
	return nil
}

func (r *fakePostRepo) MarkFailed(_ context.Context, id, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok && p.Status != models.PostStatusDeleted && p.Status != models.PostStatusPublished {
		p.Status = models.PostStatusFailed
		p.ErrorMessage = errorMessage
	}
	return nil
}

type fakeLocationRepo struct {
	mu        sync.Mutex
	locations map[string]*models.Location
	access    map[string]bool // locationID -> user 1 has access
	cleared   []string
	setCalls  int
	settings  map[string]models.LocationSettings
	watermark map[string]time.Time
}

var _ repository.LocationRepository = (*fakeLocationRepo)(nil)

func newFakeLocationRepo(locs ...*models.Location) *fakeLocationRepo {
	r := &fakeLocationRepo{
		locations: map[string]*models.Location{},
		access:    map[string]bool{},
		settings:  map[string]models.LocationSettings{},
		watermark: map[string]time.Time{},
	}
	for _, l := range locs {
		r.locations[l.ID] = l
		r.access[l.ID] = true
	}
	return r
}

func (r *fakeLocationRepo) GetByID(_ context.Context, id string) (*models.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locations[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLocationRepo) Upsert(_ context.Context, _ *sql.Tx, loc *models.Location) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *loc
	r.locations[loc.ID] = &cp
	return loc.ID, nil
}

func (r *fakeLocationRepo) all(keep func(*models.Location) bool) []*models.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Location{}
	for _, l := range r.locations {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}

func (r *fakeLocationRepo) ListForUser(_ context.Context, _ int64) ([]*models.Location, error) {
	return r.all(func(l *models.Location) bool { return r.access[l.ID] }), nil
}

func (r *fakeLocationRepo) ListExpiring(_ context.Context, before time.Time) ([]*models.Location, error) {
	return r.all(func(l *models.Location) bool {
		return l.Connected() && l.TokenExpiresAt != nil && l.TokenExpiresAt.Before(before)
	}), nil
}

func (r *fakeLocationRepo) ListConnected(_ context.Context) ([]*models.Location, error) {
	return r.all(func(l *models.Location) bool { return l.Connected() && l.GMBLocationID != "" }), nil
}

func (r *fakeLocationRepo) ListAutoReplyEnabled(_ context.Context) ([]*models.Location, error) {
	return r.all(func(l *models.Location) bool { return l.AutoReplyEnabled }), nil
}

func (r *fakeLocationRepo) HasAccess(_ context.Context, locationID string, _ int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.access[locationID], nil
}

func (r *fakeLocationRepo) SetTokens(_ context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locations[id]
	if !ok || l.RefreshToken == "" {
		return errors.New("no rows affected")
	}
	r.setCalls++
	l.AccessToken = accessToken
	if refreshToken != "" {
		l.RefreshToken = refreshToken
	}
	l.TokenExpiresAt = &expiresAt
	return nil
}

func (r *fakeLocationRepo) ClearTokens(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.locations[id]
	l.AccessToken, l.RefreshToken, l.TokenExpiresAt = "", "", nil
	r.cleared = append(r.cleared, id)
	return nil
}

func (r *fakeLocationRepo) UpdateSettings(_ context.Context, id string, settings models.LocationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[id] = settings
	return nil
}

func (r *fakeLocationRepo) UpdateReviewsWatermark(_ context.Context, id string, fetchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watermark[id] = fetchedAt
	return nil
}

type fakeReviewRepo struct {
	mu       sync.Mutex
	reviews  map[int64]*models.Review
	replies  map[int64]*models.ReviewReply // by review id
	upserted []*models.Review
	nextID   int64
}

var _ repository.ReviewRepository = (*fakeReviewRepo)(nil)

func newFakeReviewRepo(reviews ...*models.Review) *fakeReviewRepo {
	r := &fakeReviewRepo{reviews: map[int64]*models.Review{}, replies: map[int64]*models.ReviewReply{}}
	for _, rv := range reviews {
		r.reviews[rv.ID] = rv
	}
	return r
}

func (r *fakeReviewRepo) GetByID(_ context.Context, id int64) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reviews[id], nil
}

func (r *fakeReviewRepo) Upsert(_ context.Context, review *models.Review) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserted = append(r.upserted, review)
	return int64(len(r.upserted)), nil
}

func (r *fakeReviewRepo) ListByLocation(_ context.Context, locationID string) ([]*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Review
	for _, rv := range r.reviews {
		if rv.LocationID == locationID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) ListUnanswered(_ context.Context, locationID string) ([]*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Review
	for id := int64(1); id <= int64(len(r.reviews))+10; id++ {
		rv, ok := r.reviews[id]
		if !ok || rv.LocationID != locationID || rv.OwnerReply != "" {
			continue
		}
		if _, replied := r.replies[id]; replied {
			continue
		}
		out = append(out, rv)
	}
	return out, nil
}

func (r *fakeReviewRepo) CreateReply(_ context.Context, reply *models.ReviewReply) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	reply.ID = r.nextID
	cp := *reply
	r.replies[reply.ReviewID] = &cp
	return reply.ID, nil
}

func (r *fakeReviewRepo) GetReplyByReviewID(_ context.Context, reviewID int64) (*models.ReviewReply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.replies[reviewID]
	if !ok {
		return nil, nil
	}
	cp := *rr
	return &cp, nil
}

func (r *fakeReviewRepo) UpdateReply(_ context.Context, reply *models.ReviewReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *reply
	r.replies[reply.ReviewID] = &cp
	return nil
}

type fakeTokens struct {
	mu    sync.Mutex
	token string
	err   error
	calls int
}

var _ TokenService = (*fakeTokens)(nil)

func (f *fakeTokens) GetValidAccessToken(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.token, f.err
}

func (f *fakeTokens) ForceRefresh(ctx context.Context, id string) (string, error) {
	return f.GetValidAccessToken(ctx, id)
}

type fakeGMB struct {
	mu           sync.Mutex
	createCalls  int
	createErr    error
	createPanic  bool
	onCreate     func()
	lastLocation string
	reviewPages  []*gmb.ListReviewsResponse
	listErr      error
	pageTokens   []string
	replies      map[string]string
	replyErr     error
}

var _ gmb.Client = (*fakeGMB)(nil)

func (f *fakeGMB) CreateLocalPost(_ context.Context, _ string, locationName string, _ *gmb.LocalPost) (*gmb.LocalPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPanic {
		panic("boom")
	}
	f.createCalls++
	f.lastLocation = locationName
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gmb.LocalPost{Name: locationName + "/localPosts/1"}, nil
}

func (f *fakeGMB) ListReviews(_ context.Context, _ string, _ string, pageToken string, _ int) (*gmb.ListReviewsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageTokens = append(f.pageTokens, pageToken)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.reviewPages) == 0 {
		return &gmb.ListReviewsResponse{}, nil
	}
	page := f.reviewPages[0]
	f.reviewPages = f.reviewPages[1:]
	return page, nil
}

func (f *fakeGMB) UpdateReply(_ context.Context, _ string, reviewName, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	if f.replies == nil {
		f.replies = map[string]string{}
	}
	f.replies[reviewName] = comment
	return nil
}

type fakeProcessed struct {
	mu  sync.Mutex
	set map[string]bool
	err error
}

var _ cache.ProcessedSet = (*fakeProcessed)(nil)

func newFakeProcessed() *fakeProcessed { return &fakeProcessed{set: map[string]bool{}} }

func (f *fakeProcessed) Contains(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[id], f.err
}

func (f *fakeProcessed) Add(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[id] = true
	return nil
}

func (f *fakeProcessed) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.set, id)
	return nil
}

type scheduledJob struct {
	at    time.Time
	email string
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]scheduledJob
	err  error
	ops  []string
}

var _ PostScheduler = (*fakeScheduler)(nil)

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{jobs: map[string]scheduledJob{}} }

func (f *fakeScheduler) Schedule(_ context.Context, postID string, at time.Time, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "schedule:"+postID)
	if f.err != nil {
		return f.err
	}
	f.jobs[postID] = scheduledJob{at: at, email: email}
	return nil
}

func (f *fakeScheduler) Reschedule(ctx context.Context, postID string, at time.Time, email string) error {
	f.mu.Lock()
	f.ops = append(f.ops, "reschedule:"+postID)
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	f.jobs[postID] = scheduledJob{at: at, email: email}
	f.mu.Unlock()
	return nil
}

func (f *fakeScheduler) Unschedule(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "unschedule:"+postID)
	if f.err != nil {
		return f.err
	}
	delete(f.jobs, postID)
	return nil
}

type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	err    error
	denied bool
}

var _ cache.Locker = (*fakeLocker)(nil)

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.denied || f.held[key] {
		return nil, false, nil
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, true, nil
}

type fakeAssistant struct {
	sentiment   map[int64]models.Sentiment
	classifyErr map[int64]error
	panicOn     int64
}

var _ ai.Assistant = (*fakeAssistant)(nil)

func (f *fakeAssistant) ClassifySentiment(_ context.Context, review *models.Review) (models.Sentiment, error) {
	if review.ID == f.panicOn {
		panic("assistant exploded")
	}
	if err := f.classifyErr[review.ID]; err != nil {
		return "", err
	}
	if s, ok := f.sentiment[review.ID]; ok {
		return s, nil
	}
	return models.SentimentPositive, nil
}

func (f *fakeAssistant) GenerateReply(_ context.Context, review *models.Review, tone models.ReplyTone, _ models.Sentiment) (string, error) {
	return "Thank you, " + review.ReviewerName + " (" + string(tone) + ")", nil
}

type fakeOrgRepo struct {
	ensured []int64
	err     error
}

var _ repository.OrganizationRepository = (*fakeOrgRepo)(nil)

func (f *fakeOrgRepo) GetForUser(_ context.Context, _ int64) (int64, bool, error) {
	if len(f.ensured) == 0 {
		return 0, false, nil
	}
	return 10, true, nil
}

func (f *fakeOrgRepo) EnsureForUser(_ context.Context, _ *sql.Tx, userID int64, _ string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.ensured = append(f.ensured, userID)
	return 10, nil
}

type fakeUserRepo struct {
	users map[int64]*models.User
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, bool, error) {
	u, ok := f.users[id]
	return u, ok, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, _ *sql.Tx, user *models.User) (int64, error) {
	if f.users == nil {
		f.users = map[int64]*models.User{}
	}
	for id, u := range f.users {
		if u.Email == user.Email {
			f.users[id] = user
			return id, nil
		}
	}
	id := int64(len(f.users) + 1)
	f.users[id] = user
	return id, nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
	err      error
}

var _ repository.PublishAttemptRepository = (*fakeAttempts)(nil)

func (f *fakeAttempts) Create(_ context.Context, attempt *models.PublishAttempt) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	attempt.ID = int64(len(f.attempts) + 1)
	f.attempts = append(f.attempts, attempt)
	return attempt.ID, nil
}

func (f *fakeAttempts) ListByPostID(_ context.Context, postID string) ([]*models.PublishAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range f.attempts {
		if a.PostID == postID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) outcomes() []models.AttemptOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AttemptOutcome, 0, len(f.attempts))
	for _, a := range f.attempts {
		out = append(out, a.Outcome)
	}
	return out
}

type fakeApiKeyRepo struct {
	keys    []*models.ApiKey
	owners  map[int64]string
	touched []string
	nextID  int64
}

var _ repository.ApiKeyRepository = (*fakeApiKeyRepo)(nil)

func newFakeApiKeyRepo() *fakeApiKeyRepo {
	return &fakeApiKeyRepo{owners: map[int64]string{}}
}

func (f *fakeApiKeyRepo) GetByHash(_ context.Context, keyHash string) (*models.User, error) {
	for _, k := range f.keys {
		if k.KeyHash == keyHash {
			return &models.User{ID: k.UserID, Email: f.owners[k.UserID]}, nil
		}
	}
	return nil, nil
}

func (f *fakeApiKeyRepo) GetByUserID(_ context.Context, userID int64) ([]*models.ApiKey, error) {
	var out []*models.ApiKey
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeApiKeyRepo) Create(_ context.Context, apiKey *models.ApiKey) (int64, error) {
	f.nextID++
	apiKey.ID = f.nextID
	f.keys = append(f.keys, apiKey)
	return apiKey.ID, nil
}

func (f *fakeApiKeyRepo) Touch(_ context.Context, keyHash string, _ time.Time) error {
	f.touched = append(f.touched, keyHash)
	return nil
}

func (f *fakeApiKeyRepo) Remove(_ context.Context, id, userID int64) (bool, error) {
	for i, k := range f.keys {
		if k.ID == id && k.UserID == userID {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
