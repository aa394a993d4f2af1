package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory bucket implementing API.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	multipart map[string]map[int32][]byte
	stale     []types.MultipartUpload
	aborted   []string
	nextID    int

	headCalls int
	failHead  error
	failGet   map[string]error
	pageSize  int

	putCalls int
	// failPuts and failGets make the first n calls fail with a transient error.
	failPuts int
	getCalls int
	failGets int
}

var errTransient = &smithy.GenericAPIError{Code: "InternalError", Message: "try again"}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:   map[string][]byte{},
		multipart: map[string]map[int32][]byte{},
		failGet:   map[string]error{},
		pageSize:  1000,
	}
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putCalls <= f.failPuts {
		return nil, errTransient
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.multipart[id] = map[int32][]byte{}
	return &s3.CreateMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.multipart[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	parts[aws.ToInt32(in.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("\"etag-%d\"", aws.ToInt32(in.PartNumber)))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.multipart[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(parts[int32(n)])
	}
	f.objects[aws.ToString(in.Key)] = buf.Bytes()
	delete(f.multipart, aws.ToString(in.UploadId))
	return &s3.CompleteMultipartUploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.multipart, aws.ToString(in.UploadId))
	f.aborted = append(f.aborted, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	if f.failHead != nil {
		return nil, f.failHead
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getCalls <= f.failGets {
		return nil, errTransient
	}
	if err := f.failGet[aws.ToString(in.Key)]; err != nil {
		return nil, err
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.StartAfter) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	truncated := false
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		truncated = true
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated), KeyCount: aws.Int32(int32(len(keys)))}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListMultipartUploads(_ context.Context, _ *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &s3.ListMultipartUploadsOutput{Uploads: f.stale, IsTruncated: aws.Bool(false)}, nil
}

func staleUpload(key string, age time.Duration) types.MultipartUpload {
	initiated := time.Now().Add(-age)
	return types.MultipartUpload{Key: aws.String(key), UploadId: aws.String("stale-" + key), Initiated: &initiated}
}
