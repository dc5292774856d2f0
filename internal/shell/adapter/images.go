package adapter

import (
	"context"
	"fmt"

	"github.com/dockgeac/dockgeac/internal/core/refnorm"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"
)

// =============================================================================
// Image Operations
// =============================================================================

// PullImage fetches an image reference.
//
// Local-only references (":local" tag or "localhost/" registry) are never
// pulled: they fail fast when absent. A failed remote pull falls back to
// a local presence check so air-gapped hosts keep working with cached
// images.
func (a *Apple) PullImage(ctx context.Context, ref string) error {
	if refnorm.IsLocalOnly(ref) {
		exists, err := a.imageExists(ctx, ref)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: Local image %s not found", runtime.ErrImageNotFound, ref)
		}
		return nil
	}

	result := a.driver.Run(ctx, "image", "pull", ref)
	if result.Ok() {
		return nil
	}

	exists, err := a.imageExists(ctx, ref)
	if err == nil && exists {
		a.logger.Warn("image pull failed, using local copy", "image", ref)
		return nil
	}
	return runtime.NewCommandError("pull image", []string{"image", "pull", ref}, result, runtime.ErrImageNotFound)
}

// imageExists checks local presence by candidate-set intersection.
func (a *Apple) imageExists(ctx context.Context, ref string) (bool, error) {
	result := a.driver.Run(ctx, "image", "list", "--format", "json")
	if !result.Ok() {
		return false, runtime.NewCommandError("list images", []string{"image", "list", "--format", "json"}, result, nil)
	}
	for _, image := range runtime.Images(result.Stdout) {
		if refnorm.Matches(image.Reference, ref) {
			return true, nil
		}
	}
	return false, nil
}

// ImageList returns local images with container usage counts attached.
// Usage is counted by exact digest match or any normalised-reference
// candidate match against the full container inventory.
func (a *Apple) ImageList(ctx context.Context) ([]ImageInfo, error) {
	imagesResult := a.driver.Run(ctx, "image", "list", "--format", "json")
	if !imagesResult.Ok() {
		return nil, runtime.NewCommandError("list images", []string{"image", "list", "--format", "json"}, imagesResult, nil)
	}
	containersResult := a.driver.Run(ctx, "list", "--all", "--format", "json")
	if !containersResult.Ok() {
		return nil, runtime.NewCommandError("list containers", []string{"list", "--all", "--format", "json"}, containersResult, nil)
	}

	uses := runtime.ContainerImages(containersResult.Stdout)

	var images []ImageInfo
	for _, record := range runtime.Images(imagesResult.Stdout) {
		info := ImageInfo{
			Reference: record.Reference,
			Digest:    record.Digest,
		}
		for _, used := range uses {
			if record.Digest != "" && used == record.Digest {
				info.InUseCount++
				continue
			}
			if refnorm.Matches(record.Reference, used) {
				info.InUseCount++
			}
		}
		images = append(images, info)
	}
	return images, nil
}

// DeleteImage removes an image, refusing while containers still use it.
func (a *Apple) DeleteImage(ctx context.Context, ref string) error {
	images, err := a.ImageList(ctx)
	if err != nil {
		return err
	}
	for _, image := range images {
		if !refnorm.Matches(image.Reference, ref) {
			continue
		}
		if image.InUseCount > 0 {
			return fmt.Errorf("%w: %s is used by %d container(s)", runtime.ErrImageInUse, ref, image.InUseCount)
		}
	}

	result := a.driver.Run(ctx, "image", "delete", ref)
	if !result.Ok() {
		return runtime.NewCommandError("delete image", []string{"image", "delete", ref}, result, nil)
	}
	return nil
}

// NetworkList returns the runtime's network names.
func (a *Apple) NetworkList(ctx context.Context) ([]string, error) {
	result := a.driver.Run(ctx, "network", "list", "--format", "json")
	if !result.Ok() {
		return nil, runtime.NewCommandError("list networks", []string{"network", "list", "--format", "json"}, result, nil)
	}
	return runtime.NetworkNames(result.Stdout), nil
}
