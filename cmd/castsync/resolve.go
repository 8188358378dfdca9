// ABOUTME: Prefix-based lookup helpers shared by the episode-facing commands
// ABOUTME: Resolves user-supplied references to podcasts and episodes

package main

import (
	"fmt"
	"strings"

	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/storage"
)

// resolvePodcast finds a podcast by feed URL, full id, or id prefix.
func resolvePodcast(ref string) (*models.Podcast, error) {
	if podcast, err := store.GetPodcastByFeedURL(ref); err == nil {
		return podcast, nil
	}
	if podcast, err := store.GetPodcast(ref); err == nil {
		return podcast, nil
	}

	podcasts, err := store.ListPodcasts(false)
	if err != nil {
		return nil, fmt.Errorf("failed to list podcasts: %w", err)
	}
	var match *models.Podcast
	for _, p := range podcasts {
		if strings.HasPrefix(p.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("podcast reference %q is ambiguous", ref)
			}
			match = p
		}
	}
	if match == nil {
		return nil, fmt.Errorf("podcast not found: %s", ref)
	}
	return match, nil
}

// resolveEpisode finds an episode by full id or id prefix.
func resolveEpisode(ref string) (*models.Episode, error) {
	if episode, err := store.GetEpisode(ref); err == nil {
		return episode, nil
	}

	episodes, err := store.ListEpisodes(&storage.EpisodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	var match *models.Episode
	for _, e := range episodes {
		if strings.HasPrefix(e.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("episode reference %q is ambiguous", ref)
			}
			match = e
		}
	}
	if match == nil {
		return nil, fmt.Errorf("episode not found: %s", ref)
	}
	return match, nil
}
