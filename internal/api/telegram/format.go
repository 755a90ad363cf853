package telegram

import (
	"fmt"
	"strings"

	"thermal-vision/internal/domain/entity"
)

const captionLimit = 1024

func formatResult(result *entity.DetectionResult) string {
	if result.Count == 0 {
		return "✅ No objects detected."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔥 Found %d object(s):", result.Count)
	for i, d := range result.Detections {
		fmt.Fprintf(&sb, "\n%d. %s: %.0f%% (%s)", i+1, d.Label, d.Confidence*100, d.TemperatureLabel)
	}
	return sb.String()
}

func formatHistory(entries []entity.HistoryEntry) string {
	if len(entries) == 0 {
		return "📭 No detections yet."
	}

	var sb strings.Builder
	sb.WriteString("🗂 Recent detections:")
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n• %s: ", e.CreatedAt.Format("2006-01-02 15:04"))
		if e.Count == 0 {
			sb.WriteString("no objects")
			continue
		}
		fmt.Fprintf(&sb, "%d object(s): %s", e.Count, strings.Join(e.Labels, ", "))
	}
	return sb.String()
}
