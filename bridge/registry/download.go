package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// DefaultDownloadTimeout bounds a remote registry download
const DefaultDownloadTimeout = 60 * time.Second

// DownloadRegistry fetches the remote chain registry document to a local file.
//
// Params:
//   - ctx: cancels the download
//   - src: any go-getter source, e.g. https://registry.initia.xyz/chains.json
//   - dstDir: the directory the document is stored in
//
// Returns:
//   - string: the path of the downloaded file
//   - error: if the document cannot be downloaded
//
// Usage:
//   - Used on startup to refresh the fallback registry before the bundled copy is used
func DownloadRegistry(ctx context.Context, src, dstDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDownloadTimeout)
	defer cancel()

	dst := filepath.Join(dstDir, "chains.json")
	client := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeFile,
		Getters: map[string]getter.Getter{
			"http":  &getter.HttpGetter{},
			"https": &getter.HttpGetter{},
			"file":  new(getter.FileGetter),
		},
	}

	log.Info().Str("src", src).Str("dst", dst).Msg("Downloading chain registry")
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("failed to download registry: %w", err)
	}
	return dst, nil
}

// LoadFallback builds the fallback registry from the bundled file and, when
// remoteSrc is set, the remote document. A failed download is logged and the
// bundled file is used alone.
func LoadFallback(ctx context.Context, bundledPath, remoteSrc, cacheDir string) (*Fallback, error) {
	lists := make([][]RegistryChain, 0, 2)

	if bundledPath != "" {
		bundled, err := LoadRegistryFile(bundledPath)
		if err != nil {
			return nil, err
		}
		lists = append(lists, bundled)
	}

	if remoteSrc != "" {
		path, err := DownloadRegistry(ctx, remoteSrc, cacheDir)
		if err != nil {
			log.Warn().Err(err).Str("src", remoteSrc).Msg("Using bundled registry only")
		} else {
			remote, err := LoadRegistryFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Remote registry unreadable, using bundled registry only")
			} else {
				lists = append(lists, remote)
			}
		}
	}

	return NewFallback(lists...), nil
}
