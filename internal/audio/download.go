package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"tracklistify/internal/logger"
	"tracklistify/pkg/utils"
)

// Downloader fetches remote mixes as local audio files using yt-dlp.
type Downloader struct {
	Logger *logger.Logger
	TmpDir string
}

// NewDownloader creates a Downloader writing into tmpDir.
func NewDownloader(log *logger.Logger, tmpDir string) *Downloader {
	return &Downloader{Logger: log, TmpDir: tmpDir}
}

// ytdlpInfo is the subset of yt-dlp's JSON dump we care about.
type ytdlpInfo struct {
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	UploadDate string  `json:"upload_date"`
	Duration   float64 `json:"duration"`
}

// FetchInfo queries the remote mix's metadata without downloading it.
func (d *Downloader) FetchInfo(ctx context.Context, url string) (MixInfo, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", "-J", "--no-download", url)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return MixInfo{}, fmt.Errorf("metadata fetch cancelled")
		}
		return MixInfo{}, fmt.Errorf("yt-dlp failed to fetch metadata: %w\nDetails: %s", err, stderr.String())
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return MixInfo{}, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	return MixInfo{
		Title:    info.Title,
		Artist:   info.Uploader,
		Date:     info.UploadDate,
		Source:   url,
		Duration: info.Duration,
	}, nil
}

// Download fetches the mix as an mp3 file and returns its local path.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	d.Logger.Info("=== Downloading mix ===")
	d.Logger.Debug("URL: %s", url)

	outputTemplate := filepath.Join(d.TmpDir, "%(title)s.%(ext)s")
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--extract-audio",
		"--audio-format", "mp3",
		"-f", "bestaudio[ext=m4a]/bestaudio/best",
		"--retries", "10",
		"--fragment-retries", "10",
		"--embed-metadata",
		"--no-playlist",
		"-o", outputTemplate,
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if d.Logger.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download cancelled")
		}
		return "", fmt.Errorf("yt-dlp failed: %w\nDetails: %s", err, stderr.String())
	}

	path, err := newestAudioFile(d.TmpDir)
	if err != nil {
		return "", err
	}
	d.Logger.Info("Downloaded to %s", path)
	return path, nil
}

// newestAudioFile returns the most recently modified audio file in dir.
func newestAudioFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download directory: %w", err)
	}

	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || !utils.IsAudioFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if mod := fi.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(dir, e.Name())
			newestMod = mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("download produced no audio file in %s", dir)
	}
	return newest, nil
}
