package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type mockStore struct {
	inputs  []*s3.PutObjectInput
	bodies  [][]byte
	err     error
	objects []types.Object
	deleted []string
	failDel map[string]bool
	listErr error
}

func (m *mockStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, _ := io.ReadAll(in.Body)
	m.inputs = append(m.inputs, in)
	m.bodies = append(m.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

// ListObjectsV2 serves the objects one per page to exercise pagination.
func (m *mockStore) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	i := 0
	if in.ContinuationToken != nil {
		i, _ = strconv.Atoi(*in.ContinuationToken)
	}
	out := &s3.ListObjectsV2Output{}
	if i < len(m.objects) {
		out.Contents = []types.Object{m.objects[i]}
	}
	if i+1 < len(m.objects) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(i + 1))
	}
	return out, nil
}

func (m *mockStore) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.failDel[*in.Key] {
		return nil, errors.New("access denied")
	}
	m.deleted = append(m.deleted, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestWebhookArchiveKey(t *testing.T) {
	at := time.Date(2026, 10, 15, 23, 59, 0, 0, time.FixedZone("X", -2*3600)) // 2026-10-16 01:59 UTC

	tests := []struct {
		eventType string
		pattern   string
	}{
		{"payment_gate.external_initiate", `^webhooks/2026/10/16/payment_gate\.external_initiate/[0-9A-Z]{26}\.json$`},
		{"", `^webhooks/2026/10/16/unknown/[0-9A-Z]{26}\.json$`},
		{"../../etc", `^webhooks/2026/10/16/\.\._\.\._etc/[0-9A-Z]{26}\.json$`},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			key := WebhookArchiveKey(tt.eventType, at)
			if !regexp.MustCompile(tt.pattern).MatchString(key) {
				t.Errorf("key = %q, want match %s", key, tt.pattern)
			}
		})
	}

	if WebhookArchiveKey("x", at) == WebhookArchiveKey("x", at) {
		t.Error("keys for the same instant must be unique")
	}
}

func TestStorageService_ArchiveWebhook(t *testing.T) {
	putter := &mockStore{}
	svc := NewStorageServiceWithClient(putter, "vocalis-archive", testLogger())

	key, err := svc.ArchiveWebhook(context.Background(), "contract.start", []byte(`{"id":"evt_1"}`), time.Now())
	if err != nil {
		t.Fatalf("ArchiveWebhook() error = %v", err)
	}
	if len(putter.inputs) != 1 {
		t.Fatalf("puts = %d, want 1", len(putter.inputs))
	}
	in := putter.inputs[0]
	if *in.Bucket != "vocalis-archive" || *in.Key != key || *in.ContentType != "application/json" {
		t.Errorf("input = bucket %q key %q type %q", *in.Bucket, *in.Key, *in.ContentType)
	}
	if string(putter.bodies[0]) != `{"id":"evt_1"}` {
		t.Errorf("body = %s", putter.bodies[0])
	}
}

func TestStorageService_Disabled(t *testing.T) {
	svc, err := NewStorageService(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewStorageService() error = %v", err)
	}
	if svc.IsEnabled() || svc.Client() != nil {
		t.Fatal("storage should be disabled without a bucket")
	}
	key, err := svc.ArchiveWebhook(context.Background(), "x", []byte("{}"), time.Now())
	if key != "" || err != nil {
		t.Errorf("ArchiveWebhook() = %q, %v; want no-op", key, err)
	}
}

func TestStorageService_PutFailure(t *testing.T) {
	svc := NewStorageServiceWithClient(&mockStore{err: errors.New("bucket gone")}, "b", testLogger())
	if _, err := svc.ArchiveWebhook(context.Background(), "x", []byte("{}"), time.Now()); err == nil {
		t.Error("expected put error")
	}
}

func TestStorageService_DeleteArchivedWebhooks(t *testing.T) {
	cutoff := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	obj := func(key string, age time.Duration) types.Object {
		return types.Object{Key: aws.String(key), LastModified: aws.Time(cutoff.Add(age))}
	}

	t.Run("deletes only objects older than cutoff", func(t *testing.T) {
		store := &mockStore{
			objects: []types.Object{
				obj("webhooks/2026/08/01/contract.start/a.json", -24*time.Hour),
				obj("webhooks/2026/09/20/contract.start/b.json", 24*time.Hour),
				obj("webhooks/2026/08/02/invoice.finalized/c.json", -time.Hour),
				{Key: aws.String("webhooks/no-date.json")},
			},
		}
		svc := NewStorageServiceWithClient(store, "b", testLogger())

		n, err := svc.DeleteArchivedWebhooks(context.Background(), cutoff)
		if err != nil {
			t.Fatalf("DeleteArchivedWebhooks() error = %v", err)
		}
		if n != 2 || len(store.deleted) != 2 {
			t.Errorf("deleted = %d %v, want 2", n, store.deleted)
		}
	})

	t.Run("delete failure is skipped", func(t *testing.T) {
		store := &mockStore{
			objects: []types.Object{obj("webhooks/x.json", -time.Hour), obj("webhooks/y.json", -time.Hour)},
			failDel: map[string]bool{"webhooks/x.json": true},
		}
		svc := NewStorageServiceWithClient(store, "b", testLogger())
		n, err := svc.DeleteArchivedWebhooks(context.Background(), cutoff)
		if err != nil || n != 1 {
			t.Errorf("got (%d, %v), want (1, nil)", n, err)
		}
	})

	t.Run("list failure is returned", func(t *testing.T) {
		svc := NewStorageServiceWithClient(&mockStore{listErr: errors.New("timeout")}, "b", testLogger())
		if _, err := svc.DeleteArchivedWebhooks(context.Background(), cutoff); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("disabled storage is a no-op", func(t *testing.T) {
		svc := NewStorageServiceWithClient(nil, "", testLogger())
		if n, err := svc.DeleteArchivedWebhooks(context.Background(), cutoff); n != 0 || err != nil {
			t.Errorf("got (%d, %v)", n, err)
		}
	})
}
