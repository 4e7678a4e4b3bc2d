package handler

import (
	"fmt"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/config"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// OptionsFromConfig applies the mount settings over DefaultOptions.
func OptionsFromConfig(cfg config.MountConfig) Options {
	opts := DefaultOptions()
	opts.AttrTimeout = cfg.AttrTimeout
	opts.EntryTimeout = cfg.EntryTimeout
	opts.PageCache = cfg.PageCache
	return opts
}

// NewServer mounts h at the configured mountpoint. The caller runs Serve.
func NewServer(h *Handler, cfg config.MountConfig) (*fuse.Server, error) {
	fsName := cfg.FSName
	if fsName == "" {
		fsName = "networkfs"
	}

	server, err := fuse.NewServer(h, cfg.Mountpoint, &fuse.MountOptions{
		// Filled in so that mount tables show something meaningful.
		Name:   "networkfs",
		FsName: fsName,

		AllowOther: cfg.AllowOther,
		Debug:      cfg.Debug,

		// Listings carry no attributes, so every entry would need a lookup.
		DisableReadDirPlus: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mount %s: %w", cfg.Mountpoint, err)
	}
	return server, nil
}
