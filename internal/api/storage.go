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

// This file defines the storage-facing endpoints: folder statistics, raw clip
// uploads, and signed download links for finished renders. Uploads are
// streamed straight from the request into the bucket so large clips never
// stage on the server's disk.
//
// Functions:
//   - StorageRouter: Registers the "/storage", "/clips", and "/renders" routes.
package api

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// sniffLen is the number of leading bytes the content detector needs. The
// filetype library matches magic numbers within the first 262 bytes.
const sniffLen = 262

// signedURLTTL is how long a minted render download link stays valid.
const signedURLTTL = 15 * time.Minute

// StorageRouter sets up the API routes backed by the storage service.
//
// Inputs:
//   - r: A *gin.RouterGroup the routes are added under (e.g. "/api/v1").
//   - store: The storage service the handlers call.
//
// This function defines the following endpoints:
//   - GET /storage/stats: Object counts and byte totals per pipeline folder.
//   - POST /clips: Uploads raw clips (multipart, field "files") into the raw
//     folder. Each file's content is sniffed and non-video uploads are rejected.
//   - GET /renders/*object: Returns a time-limited signed URL for downloading
//     a finished render or manifest from the render bucket.
func StorageRouter(r *gin.RouterGroup, store *services.StorageService) {
	storage := r.Group("/storage")
	{
		// Handler for GET /storage/stats
		storage.GET("/stats", func(c *gin.Context) {
			stats, err := collectFolderStats(c, store)
			if err != nil {
				log.Printf("Error collecting folder stats: %v\n", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read folder stats"})
				return
			}
			c.JSON(http.StatusOK, stats)
		})
	}

	clips := r.Group("/clips")
	{
		// Handler for POST /clips
		clips.POST("", func(c *gin.Context) {
			form, err := c.MultipartForm()
			if err != nil {
				c.String(http.StatusBadRequest, "get form err: %s", err.Error())
				return
			}
			files := form.File["files"]
			if len(files) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "no files in request, use the \"files\" form field"})
				return
			}

			uploaded := make([]string, 0, len(files))
			for _, file := range files {
				src, err := file.Open()
				if err != nil {
					c.String(http.StatusBadRequest, "upload file err: %s", err.Error())
					return
				}

				// Sniff the head, then stream head plus remainder into the
				// bucket without staging the clip on local disk.
				head := make([]byte, sniffLen)
				n, err := io.ReadFull(src, head)
				if err != nil && err != io.ErrUnexpectedEOF {
					_ = src.Close()
					c.String(http.StatusBadRequest, "upload file err: %s", err.Error())
					return
				}
				head = head[:n]

				kind, err := filetype.Match(head)
				if err != nil || kind == filetype.Unknown || kind.MIME.Type != "video" {
					_ = src.Close()
					detected := "unknown"
					if err == nil && kind != filetype.Unknown {
						detected = kind.MIME.Value
					}
					c.JSON(http.StatusUnsupportedMediaType, gin.H{
						"error": "file " + file.Filename + " is not a video (detected " + detected + ")",
					})
					return
				}

				objectName := cloud.JoinObjectPath(store.RawFolder, file.Filename)
				metadata := map[string]string{"source": "api-upload"}
				body := io.MultiReader(bytes.NewReader(head), src)
				size, err := store.UploadStream(c, store.ClipBucket, objectName, kind.MIME.Value, metadata, body)
				_ = src.Close()
				if err != nil {
					log.Printf("Error uploading clip %s: %v\n", file.Filename, err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed for " + file.Filename})
					return
				}
				log.Printf("uploaded clip %s (%d bytes) to gs://%s/%s\n", file.Filename, size, store.ClipBucket, objectName)
				uploaded = append(uploaded, objectName)
			}
			c.JSON(http.StatusOK, gin.H{"uploaded": uploaded})
		})
	}

	renders := r.Group("/renders")
	{
		// Handler for GET /renders/*object
		// The wildcard keeps folder-qualified object names routable.
		renders.GET("/*object", func(c *gin.Context) {
			object := strings.TrimPrefix(c.Param("object"), "/")
			if object == "" {
				c.Status(http.StatusBadRequest)
				return
			}
			bucket := store.RenderBucket
			if bucket == "" {
				bucket = store.ClipBucket
			}
			signedURL, err := store.GenerateSignedURL(c, bucket, object, signedURLTTL)
			if err != nil {
				log.Printf("Error generating signed URL for %s: %v\n", object, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate download URL"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": signedURL, "expires_in": signedURLTTL.String()})
		})
	}
}

// collectFolderStats gathers per-folder statistics for every logical folder
// the pipeline uses. The render bucket's processed folder is included when it
// is a separate bucket.
func collectFolderStats(c *gin.Context, store *services.StorageService) ([]*model.FolderStats, error) {
	folders := []string{store.RawFolder, store.ProcessedFolder, store.TempFolder}
	out := make([]*model.FolderStats, 0, len(folders)+1)
	for _, folder := range folders {
		stats, err := store.FolderStats(c, store.ClipBucket, folder)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	if store.RenderBucket != "" && store.RenderBucket != store.ClipBucket {
		stats, err := store.FolderStats(c, store.RenderBucket, store.ProcessedFolder)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, nil
}
