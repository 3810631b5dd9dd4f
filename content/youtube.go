package content

import "regexp"

// Known YouTube URL shapes: watch?v=, youtu.be/, embed/, v/, e/, shorts/ and
// channel-style paths ending in the id.
var reYouTube = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:[^/\s]+/\S+/|(?:v|e(?:mbed)?|shorts)/|\S*?[?&]v=)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// YouTubeID extracts the 11-character video id from a YouTube URL.
func YouTubeID(url string) (string, bool) {
	m := reYouTube.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
