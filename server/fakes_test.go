package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"time"

	"swarabox/config"
	"swarabox/model"
	"swarabox/repository"
	"swarabox/storage"

	"github.com/minio/minio-go/v7"
)

// In-memory repository fakes. They honor the same contracts the MySQL
// implementations do: atomic create, exactly-one category row, sentinel
// errors.

type fakeSongRepo struct {
	songs      map[int64]*model.Song
	categories map[int64]model.Category
	nextID     int64

	// createErr makes CreateSong fail as a rolled-back transaction would:
	// error returned, no rows left behind.
	createErr error
}

func newFakeSongRepo() *fakeSongRepo {
	return &fakeSongRepo{
		songs:      make(map[int64]*model.Song),
		categories: make(map[int64]model.Category),
	}
}

func (r *fakeSongRepo) CreateSong(song *model.Song, category model.Category) (int64, error) {
	if category.SideTable() == "" {
		return 0, repository.ErrSongNotFound
	}
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	stored := *song
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.songs[stored.ID] = &stored
	r.categories[stored.ID] = category
	return stored.ID, nil
}

func (r *fakeSongRepo) GetSongByID(id int64) (*model.Song, error) {
	song, ok := r.songs[id]
	if !ok {
		return nil, repository.ErrSongNotFound
	}
	return r.annotated(song), nil
}

func (r *fakeSongRepo) ListSongs(filter repository.SongFilter) ([]*model.Song, error) {
	var out []*model.Song
	for id, song := range r.songs {
		if filter.Type != nil && r.categories[id] != *filter.Type {
			continue
		}
		if filter.Language != nil && song.Language != *filter.Language {
			continue
		}
		if filter.IsPodcast != nil && song.IsPodcast != *filter.IsPodcast {
			continue
		}
		out = append(out, r.annotated(song))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeSongRepo) DeleteSong(id int64) error {
	if _, ok := r.songs[id]; !ok {
		return repository.ErrSongNotFound
	}
	delete(r.songs, id)
	delete(r.categories, id)
	return nil
}

func (r *fakeSongRepo) annotated(song *model.Song) *model.Song {
	out := *song
	if category, ok := r.categories[song.ID]; ok {
		c := category
		out.Type = &c
	}
	return &out
}

type likeKey struct{ userID, songID int64 }

type fakeLikeRepo struct {
	likes map[likeKey]bool
	songs *fakeSongRepo
}

func newFakeLikeRepo(songs *fakeSongRepo) *fakeLikeRepo {
	return &fakeLikeRepo{likes: make(map[likeKey]bool), songs: songs}
}

func (r *fakeLikeRepo) Like(userID, songID int64) error {
	if _, ok := r.songs.songs[songID]; !ok {
		return repository.ErrSongNotFound
	}
	key := likeKey{userID, songID}
	if r.likes[key] {
		return repository.ErrAlreadyLiked
	}
	r.likes[key] = true
	return nil
}

func (r *fakeLikeRepo) Unlike(userID, songID int64) error {
	key := likeKey{userID, songID}
	if !r.likes[key] {
		return repository.ErrLikeNotFound
	}
	delete(r.likes, key)
	return nil
}

func (r *fakeLikeRepo) IsLiked(userID, songID int64) (bool, error) {
	return r.likes[likeKey{userID, songID}], nil
}

func (r *fakeLikeRepo) LikedSongIDs(userID int64) (map[int64]bool, error) {
	liked := make(map[int64]bool)
	for key := range r.likes {
		if key.userID == userID {
			liked[key.songID] = true
		}
	}
	return liked, nil
}

type fakeUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (r *fakeUserRepo) CreateUser(user *model.User) (int64, error) {
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return 0, repository.ErrDuplicateUser
		}
	}
	r.nextID++
	stored := *user
	stored.ID = r.nextID
	r.users[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeUserRepo) GetUserByEmail(email string) (*model.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type fakeCommentRepo struct {
	comments []*model.Comment
	nextID   int64
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{}
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *model.Comment) error {
	r.nextID++
	comment.ID = r.nextID
	comment.CreatedAt = time.Now()
	stored := *comment
	r.comments = append(r.comments, &stored)
	return nil
}

func (r *fakeCommentRepo) GetBySongID(_ context.Context, songID int64) ([]*model.Comment, error) {
	out := make([]*model.Comment, 0)
	for _, comment := range r.comments {
		if comment.SongID == songID {
			c := *comment
			out = append(out, &c)
		}
	}
	return out, nil
}

// fakeBlobStore keeps objects in memory.
type fakeBlobStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	removed      []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (s *fakeBlobStore) Upload(_ context.Context, objectPath string, reader io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[objectPath] = data
	s.contentTypes[objectPath] = contentType
	return nil
}

func (s *fakeBlobStore) Remove(_ context.Context, objectPath string) error {
	delete(s.objects, objectPath)
	delete(s.contentTypes, objectPath)
	s.removed = append(s.removed, objectPath)
	return nil
}

func (s *fakeBlobStore) Get(_ context.Context, objectPath string) (storage.Object, error) {
	data, ok := s.objects[objectPath]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectPath)
	}
	return &fakeObject{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

type fakeObject struct {
	*bytes.Reader
	size int64
}

func (o *fakeObject) Close() error { return nil }

func (o *fakeObject) Stat() (minio.ObjectInfo, error) {
	return minio.ObjectInfo{Size: o.size}, nil
}

// testEnv wires an APIHandler over fakes. No cache or feed hub: the handlers
// treat those as optional.
type testEnv struct {
	handler  *APIHandler
	songs    *fakeSongRepo
	users    *fakeUserRepo
	likes    *fakeLikeRepo
	comments *fakeCommentRepo
	store    *fakeBlobStore
	cfg      *config.Config
}

func newTestEnv() *testEnv {
	songs := newFakeSongRepo()
	users := newFakeUserRepo()
	likes := newFakeLikeRepo(songs)
	comments := newFakeCommentRepo()
	store := newFakeBlobStore()
	cfg := &config.Config{
		JWTSecret:    "test-secret",
		JWTTTL:       time.Hour,
		MaxSongSize:  10 << 20,
		MaxImageSize: 5 << 20,
	}
	return &testEnv{
		handler:  NewAPIHandler(songs, users, likes, comments, store, nil, nil, cfg),
		songs:    songs,
		users:    users,
		likes:    likes,
		comments: comments,
		store:    store,
		cfg:      cfg,
	}
}

// authedRequest builds a request carrying an authenticated identity, the way
// AuthMiddleware would leave it.
func authedRequest(method, target string, body io.Reader, userID int64, username string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := context.WithValue(req.Context(), ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyUsername, username)
	return req.WithContext(ctx)
}
