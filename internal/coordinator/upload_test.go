package coordinator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, filename string, content io.Reader) ([]platesvc.Descriptor, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platesvc.Descriptor), args.Error(1)
}

func memFile(name string) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(name)), nil },
	}
}

func desc(id, file string, idx int) platesvc.Descriptor {
	return platesvc.Descriptor{ID: id, Filename: file, PlateIndex: idx, PrintTime: 600, Weight: 3}
}

func storeIDs(s *playlist.Store) []string {
	var out []string
	for _, p := range s.Snapshot() {
		out = append(out, p.ID)
	}
	return out
}

func TestUploadBatch_AppendsAllPlatesInOrder(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "a.3mf").Return([]platesvc.Descriptor{desc("A1", "a.3mf", 1)}, nil).Once()
	up.On("Upload", mock.Anything, "b.3mf").Return([]platesvc.Descriptor{desc("B1", "b.3mf", 1), desc("B2", "b.3mf", 2)}, nil).Once()

	uc := NewUploadCoordinator(store, up, nil)
	res, err := uc.UploadBatch(context.Background(), []File{memFile("a.3mf"), memFile("b.3mf")})

	require.NoError(t, err)
	assert.Equal(t, UploadResult{Submitted: 2, Appended: 3}, res)
	assert.Equal(t, []string{"A1", "B1", "B2"}, storeIDs(store))
	for _, p := range store.Snapshot() {
		assert.Equal(t, 1, p.Count)
	}
	assert.Equal(t, uint64(1), store.Version(), "store is mutated once per batch")
	assert.False(t, uc.InProgress())
	up.AssertExpectations(t)
}

func TestUploadBatch_StopsAtFirstFailureAndKeepsEarlierPlates(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "one.3mf").Return([]platesvc.Descriptor{desc("O1", "one.3mf", 1)}, nil).Once()
	up.On("Upload", mock.Anything, "two.3mf").Return(nil, &platesvc.StatusError{Op: "upload", StatusCode: 400, Detail: "bad zip"}).Once()

	uc := NewUploadCoordinator(store, up, nil)
	res, err := uc.UploadBatch(context.Background(), []File{memFile("one.3mf"), memFile("two.3mf"), memFile("three.3mf")})

	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "two.3mf", ue.File)
	assert.Equal(t, 1, ue.Index)
	var se *platesvc.StatusError
	assert.ErrorAs(t, err, &se)

	assert.Equal(t, UploadResult{Submitted: 1, Appended: 1}, res)
	assert.Equal(t, []string{"O1"}, storeIDs(store))
	up.AssertNotCalled(t, "Upload", mock.Anything, "three.3mf")
	up.AssertNumberOfCalls(t, "Upload", 2)
}

func TestUploadBatch_FirstFileFailsLeavesStoreUntouched(t *testing.T) {
	store := playlist.NewStore()
	store.Append(playlist.Plate{ID: "existing"})
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "a.3mf").Return(nil, errors.New("network down")).Once()

	_, err := NewUploadCoordinator(store, up, nil).UploadBatch(context.Background(), []File{memFile("a.3mf"), memFile("b.3mf")})

	require.Error(t, err)
	assert.Equal(t, []string{"existing"}, storeIDs(store))
	assert.Equal(t, uint64(1), store.Version())
}

func TestUploadBatch_EmptyResponsesAreNotFailures(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "empty.gcode").Return([]platesvc.Descriptor{}, nil).Once()
	up.On("Upload", mock.Anything, "b.3mf").Return([]platesvc.Descriptor{desc("B1", "b.3mf", 1)}, nil).Once()

	res, err := NewUploadCoordinator(store, up, nil).UploadBatch(context.Background(), []File{memFile("empty.gcode"), memFile("b.3mf")})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Submitted)
	assert.Equal(t, []string{"B1"}, storeIDs(store))
}

func TestUploadBatch_AppendsAfterWholeBatch(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "a.3mf").Return([]platesvc.Descriptor{desc("A1", "a.3mf", 1)}, nil).Once()
	up.On("Upload", mock.Anything, "b.3mf").Run(func(mock.Arguments) {
		assert.Equal(t, 0, store.Len(), "plates of earlier files must not be visible mid-batch")
	}).Return([]platesvc.Descriptor{desc("B1", "b.3mf", 1)}, nil).Once()

	uc := NewUploadCoordinator(store, up, nil)
	up.On("Upload", mock.Anything, "c.3mf").Run(func(mock.Arguments) {
		assert.True(t, uc.InProgress())
	}).Return([]platesvc.Descriptor{}, nil).Once()

	_, err := uc.UploadBatch(context.Background(), []File{memFile("a.3mf"), memFile("b.3mf"), memFile("c.3mf")})

	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestUploadBatch_OpenFailureCountsAsFileFailure(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "a.3mf").Return([]platesvc.Descriptor{desc("A1", "a.3mf", 1)}, nil).Once()

	missing := LocalFile(filepath.Join(t.TempDir(), "missing.3mf"))
	_, err := NewUploadCoordinator(store, up, nil).UploadBatch(context.Background(), []File{memFile("a.3mf"), missing, memFile("c.3mf")})

	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "missing.3mf", ue.File)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, []string{"A1"}, storeIDs(store))
	up.AssertNumberOfCalls(t, "Upload", 1)
}

func TestUploadBatch_DuplicateIDsSkipped(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "a.3mf").Return([]platesvc.Descriptor{desc("X", "a.3mf", 1), desc("X", "a.3mf", 2)}, nil).Once()

	res, err := NewUploadCoordinator(store, up, nil).UploadBatch(context.Background(), []File{memFile("a.3mf")})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, []string{"X"}, storeIDs(store))
}

func TestLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.3mf")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	f := LocalFile(path)
	assert.Equal(t, "part.3mf", f.Name)
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(b))
}

func TestUploadBatch_NotifiesStartAndEnd(t *testing.T) {
	store := playlist.NewStore()
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "a.3mf").Return([]platesvc.Descriptor{desc("A1", "a.3mf", 1)}, nil).Once()

	uc := NewUploadCoordinator(store, up, nil)
	var (
		flags []bool
		sizes []int
	)
	uc.Notify(func(context.Context) {
		flags = append(flags, uc.InProgress())
		sizes = append(sizes, store.Len())
	})

	_, err := uc.UploadBatch(context.Background(), []File{memFile("a.3mf")})

	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, flags)
	assert.Equal(t, []int{0, 1}, sizes, "the closing notification sees the appended plates")
}
