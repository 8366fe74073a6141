package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is an in-memory S3 bucket. ListObjectsV2 returns pageSize keys
// per page so pagination is exercised.
type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int

	getErr  error
	putErr  error
	headErr error
	listErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), pageSize: 2}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()
	slices.Sort(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+m.pageSize, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestS3NotFoundMapping(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "")
	ctx := context.Background()

	if _, err := store.Read(ctx, "missing.kv"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read missing: err = %v, want os.ErrNotExist", err)
	}
	ok, err := store.Exists(ctx, "missing.kv")
	if err != nil || ok {
		t.Errorf("Exists missing = %v, %v", ok, err)
	}

	boom := errors.New("boom")
	mock.getErr = boom
	if _, err := store.Read(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("Read: err = %v, want boom", err)
	}
	mock.headErr = boom
	if _, err := store.Exists(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("Exists: err = %v, want boom", err)
	}
	mock.listErr = boom
	if _, err := store.List(ctx, ""); !errors.Is(err, boom) {
		t.Errorf("List: err = %v, want boom", err)
	}
}

func TestS3WriteUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("upload refused")
	store := NewS3(mock, "bucket", "")

	w, err := store.Write(context.Background(), "model.kv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("data"))
	if err := w.Close(); err == nil {
		t.Fatal("Close succeeded after upload error")
	}
}

func TestS3KeyPrefix(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "registry")
	ctx := context.Background()

	writeFile(t, store, "speaker/alice.kv", "a")
	if _, ok := mock.objects["registry/speaker/alice.kv"]; !ok {
		t.Fatalf("objects = %v, want registry/speaker/alice.kv", mock.objects)
	}
	// Objects outside the store prefix are invisible.
	mock.objects["other/speaker/bob.kv"] = []byte("b")

	paths, err := store.List(ctx, "speaker")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths, []string{"speaker/alice.kv"}) {
		t.Errorf("List = %v", paths)
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errNoSuchKey, true},
		{errNotFound, true},
		{&apiError{code: "AccessDenied"}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := isS3NotFound(tt.err); got != tt.want {
			t.Errorf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
