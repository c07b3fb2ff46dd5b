package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"thetacore/internal/blob/core"
)

type object struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// fakeAPI is an in-memory bucket paging List results one key at a time.
type fakeAPI struct {
	objects map[string]object
	keys    []string // keys seen by Get/Head
}

func newFakeAPI() *fakeAPI { return &fakeAPI{objects: make(map[string]object)} }

func (f *fakeAPI) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	obj, ok := f.objects[key]
	if !ok {
		return nil, &types.NotFound{}
	}
	now := time.Now()
	return &awss3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"etag-` + key + `"`),
		Metadata:      obj.metadata,
		LastModified:  &now,
	}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	obj, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = object{body: body, contentType: aws.ToString(in.ContentType), metadata: in.Metadata}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		start = sort.SearchStrings(keys, *in.ContinuationToken)
	}
	if start >= len(keys) {
		return &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
	}
	k := keys[start]
	out := &awss3.ListObjectsV2Output{
		Contents: []types.Object{{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k].body)))}},
	}
	if start+1 < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[start+1])
	}
	return out, nil
}

func TestStoreReadsUnderPrefix(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.objects["runs/42/data/data.csv"] = object{body: []byte("date,all__inc\n"), contentType: "text/csv"}
	store := NewWithClient(api, "bucket", "/runs/42/")

	info, rc, err := store.Get(ctx, "data/data.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "date,all__inc\n" || info.ContentType != "text/csv" || info.Size != int64(len(body)) {
		t.Fatalf("unexpected get %q %+v", body, info)
	}
	if _, err := store.Head(ctx, "../data/data.csv"); err != nil {
		t.Fatalf("cleaned key should stay under prefix: %v", err)
	}
	if got := api.keys[len(api.keys)-1]; got != "runs/42/data/data.csv" {
		t.Fatalf("unexpected object key %s", got)
	}
}

func TestStoreMapsMissingObjects(t *testing.T) {
	ctx := context.Background()
	store := NewWithClient(newFakeAPI(), "bucket", "")
	if _, err := store.Head(ctx, "missing.csv"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("head: expected ErrNotExist, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing.csv"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("get: expected ErrNotExist, got %v", err)
	}
	if ok, err := core.Exists(ctx, store, "missing.csv"); ok || err != nil {
		t.Fatalf("exists: %v %v", ok, err)
	}
}

func TestStorePutListDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	store := NewWithClient(api, "bucket", "p")
	for _, key := range []string{"trace_0.csv", "hat_0.csv", "covariance_0.csv"} {
		if _, err := store.Put(ctx, key, strings.NewReader("1,2\n"), core.PutOptions{ContentType: "text/csv"}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if _, err := store.Put(ctx, "hat_0.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only failure")
	}
	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "covariance_0.csv" {
		t.Fatalf("unexpected paged list %+v", list)
	}
	if ok, err := store.Delete(ctx, "hat_0.csv"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, ok := api.objects["p/hat_0.csv"]; ok {
		t.Fatalf("object still present")
	}
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}
