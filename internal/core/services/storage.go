// Copyright 2025 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package services contains the business logic for interacting with data sources.
// This file, `storage.go`, defines the StorageService, which owns the bucket
// layout the pipeline relies on (raw, processed, and temp folders), moves
// bytes between Google Cloud Storage (GCS) and local scratch space, generates
// secure time-limited URLs for finished renders, and ages out scratch objects
// left behind by failed runs.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"google.golang.org/api/iterator"
)

// StorageService is a struct that encapsulates the clients and configuration
// needed to perform storage operations. It acts as a data access layer,
// abstracting the details of interacting with GCS and the IAM Credentials API.
type StorageService struct {
	StorageClient   *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient       *credentials.IamCredentialsClient // Client for interacting with IAM, used for signing URLs.
	SignerEmail     string                            // The service account email used to sign URLs.
	ClipBucket      string                            // The bucket holding clip uploads and scratch data.
	RenderBucket    string                            // The bucket finished renders and manifests land in.
	RawFolder       string                            // Folder for freshly uploaded, unnormalized clips.
	ProcessedFolder string                            // Folder for clips re-encoded to the shared profile.
	TempFolder      string                            // Folder for scratch objects, swept by maintenance.
}

// videoExtensions is the set of file extensions the pipeline treats as video
// when scanning bucket folders. Anything else in the raw folder is ignored
// rather than fed to the encoder.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
}

// CheckConnection verifies that the clip bucket exists and is reachable with
// the current credentials by fetching its metadata. The server runs this once
// at startup so a bad bucket name or missing permission fails fast instead of
// surfacing on the first render.
func (s *StorageService) CheckConnection(ctx context.Context) error {
	if _, err := s.StorageClient.Bucket(s.ClipBucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %q is not reachable: %w", s.ClipBucket, err)
	}
	if s.RenderBucket != "" && s.RenderBucket != s.ClipBucket {
		if _, err := s.StorageClient.Bucket(s.RenderBucket).Attrs(ctx); err != nil {
			return fmt.Errorf("bucket %q is not reachable: %w", s.RenderBucket, err)
		}
	}
	return nil
}

// EnsureFolders creates the zero-byte placeholder objects that make the
// pipeline's logical folders visible in the GCS console. GCS has no real
// directories, so a placeholder named `<folder>/` is the convention. Existing
// placeholders are left untouched.
func (s *StorageService) EnsureFolders(ctx context.Context) error {
	bucket := s.StorageClient.Bucket(s.ClipBucket)
	for _, folder := range []string{s.RawFolder, s.ProcessedFolder, s.TempFolder} {
		if folder == "" {
			continue
		}
		placeholder := folder + "/"
		_, err := bucket.Object(placeholder).Attrs(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("checking folder %q: %w", placeholder, err)
		}
		w := bucket.Object(placeholder).NewWriter(ctx)
		if err := w.Close(); err != nil {
			return fmt.Errorf("creating folder %q: %w", placeholder, err)
		}
	}
	return nil
}

// UploadFile streams a local file into the given bucket and object.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//   - bucketName: The destination bucket.
//   - objectName: The destination object name, including any folder prefix.
//   - localPath: The local file to upload.
//
// Outputs:
//   - error: An error if the local file cannot be read or the write fails.
func (s *StorageService) UploadFile(ctx context.Context, bucketName string, objectName string, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	w := s.StorageClient.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", bucketName, objectName, err)
	}
	// Close commits the upload; an error here means the object did not land.
	if err := w.Close(); err != nil {
		return fmt.Errorf("committing gs://%s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

// UploadStream writes an incoming byte stream straight into a bucket object
// with the given content type and metadata. The clip upload endpoint uses it
// to land request bodies in the raw folder without staging them on disk.
func (s *StorageService) UploadStream(ctx context.Context, bucketName string, objectName string, contentType string, metadata map[string]string, r io.Reader) (int64, error) {
	w := s.StorageClient.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return n, fmt.Errorf("writing gs://%s/%s: %w", bucketName, objectName, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("committing gs://%s/%s: %w", bucketName, objectName, err)
	}
	return n, nil
}

// DownloadToFile copies one object into a local file. Its signature matches
// the download function the rate-limited downloader wraps, so the render
// pipeline's parallel clip fetches all funnel through this method.
//
// Logic Flow:
//  1. Stat the object first so a missing clip reports a clear error
//     instead of a half-written local file.
//  2. Stream the object into the destination path.
//  3. Verify the copied byte count matches the object size. A short copy
//     means a truncated download, which would otherwise surface later as a
//     baffling encoder failure.
func (s *StorageService) DownloadToFile(ctx context.Context, bucketName string, objectName string, dest string) error {
	obj := s.StorageClient.Bucket(bucketName).Object(objectName)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("object gs://%s/%s does not exist", bucketName, objectName)
		}
		return fmt.Errorf("stat gs://%s/%s: %w", bucketName, objectName, err)
	}
	if attrs.Size == 0 {
		return fmt.Errorf("object gs://%s/%s is empty", bucketName, objectName)
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("opening gs://%s/%s: %w", bucketName, objectName, err)
	}
	defer func() { _ = r.Close() }()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("copying gs://%s/%s: %w", bucketName, objectName, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if n != attrs.Size {
		return fmt.Errorf("short download of gs://%s/%s: got %d of %d bytes", bucketName, objectName, n, attrs.Size)
	}
	return nil
}

// Delete removes a single object.
func (s *StorageService) Delete(ctx context.Context, bucketName string, objectName string) error {
	return s.StorageClient.Bucket(bucketName).Object(objectName).Delete(ctx)
}

// ListFolder lists the objects under one logical folder of a bucket, newest
// update last (bucket listing order is lexicographic by name). The folder
// placeholder object itself is excluded.
func (s *StorageService) ListFolder(ctx context.Context, bucketName string, folder string) (out []*model.ObjectStat, err error) {
	out = make([]*model.ObjectStat, 0)
	prefix := folder
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	itr := s.StorageClient.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := itr.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("listing gs://%s/%s: %w", bucketName, prefix, err)
		}
		// Skip the folder placeholder.
		if attrs.Name == prefix {
			continue
		}
		out = append(out, &model.ObjectStat{
			Name:        attrs.Name,
			SizeBytes:   attrs.Size,
			ContentType: attrs.ContentType,
			Updated:     attrs.Updated,
		})
	}
	return out, nil
}

// ListRawClips returns the video objects sitting in the raw folder of the
// clip bucket. Folder placeholders and non-video files (manifests, sidecar
// text files people drop next to their uploads) are filtered out, so batch
// jobs only ever see clips worth encoding.
func (s *StorageService) ListRawClips(ctx context.Context) ([]*model.ObjectStat, error) {
	objects, err := s.ListFolder(ctx, s.ClipBucket, s.RawFolder)
	if err != nil {
		return nil, err
	}
	clips := make([]*model.ObjectStat, 0, len(objects))
	for _, o := range objects {
		if strings.HasSuffix(o.Name, "/") {
			continue
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(o.Name))] {
			continue
		}
		clips = append(clips, o)
	}
	return clips, nil
}

// FolderStats aggregates a folder listing into the counts the dashboard
// shows: object count, total bytes, and the most recent update.
func (s *StorageService) FolderStats(ctx context.Context, bucketName string, folder string) (*model.FolderStats, error) {
	objects, err := s.ListFolder(ctx, bucketName, folder)
	if err != nil {
		return nil, err
	}
	stats := &model.FolderStats{Bucket: bucketName, Folder: folder, Objects: len(objects)}
	for _, o := range objects {
		stats.TotalBytes += o.SizeBytes
		if o.Updated.After(stats.Newest) {
			stats.Newest = o.Updated
		}
	}
	return stats, nil
}

// CleanupTemp deletes scratch objects older than the given age from the temp
// folder of the clip bucket and reports how many were removed. Failed runs
// can strand partial uploads there; the maintenance loop calls this on a
// timer so the folder stays bounded.
func (s *StorageService) CleanupTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	objects, err := s.ListFolder(ctx, s.ClipBucket, s.TempFolder)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, o := range objects {
		if o.Updated.After(cutoff) {
			continue
		}
		if err := s.Delete(ctx, s.ClipBucket, o.Name); err != nil {
			return removed, fmt.Errorf("deleting gs://%s/%s: %w", s.ClipBucket, o.Name, err)
		}
		removed++
	}
	return removed, nil
}

// GenerateSignedURL creates a time-limited, secure URL for a private GCS
// object so clients can fetch a finished render directly from GCS without
// credentials of their own. The request bytes are signed through the IAM
// Credentials API under the configured signer service account, which works
// on GCP infrastructure without any local key file.
//
// Inputs:
//   - ctx: The context for the request.
//   - bucketName: The bucket holding the object.
//   - objectName: The object to grant access to.
//   - expires: The duration for which the URL will be valid.
//
// Outputs:
//   - string: The generated signed URL, valid for GET requests only.
//   - error: An error if the signing call or URL construction fails.
func (s *StorageService) GenerateSignedURL(ctx context.Context, bucketName string, objectName string, expires time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4, // Use the modern and more secure V4 signing scheme.
		Method:         "GET",                   // The URL will only be valid for GET requests.
		Expires:        time.Now().Add(expires), // Set the expiration time.
		GoogleAccessID: s.SignerEmail,

		// The SignBytes function delegates the actual signature to the IAM
		// Credentials API under the signer service account, so no private
		// key ever needs to be present on this machine.
		SignBytes: func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}

	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", bucketName, objectName, err)
	}
	return u, nil
}
