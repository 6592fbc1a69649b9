package labelmap

import (
	"segcomplete/internal/models"
)

// Split thresholds a completed label volume into one UnsignedChar 0/1 mask per
// assigned segment. Every mask has the geometry and extent of completed;
// segments whose label does not occur get an all-zero mask.
func Split(completed *models.OrientedVolume, assignment LabelAssignment) map[string]*models.OrientedVolume {
	masks := make(map[string]*models.OrientedVolume, len(assignment))
	byLabel := make(map[int]*models.OrientedVolume, len(assignment))
	for id, label := range assignment {
		m := models.NewVolumeLike(completed, completed.Extent, models.UnsignedChar)
		masks[id] = m
		byLabel[label] = m
	}

	for idx, v := range completed.Data {
		if v == 0 {
			continue
		}
		if m, ok := byLabel[int(v)]; ok {
			m.Data[idx] = 1
		}
	}
	return masks
}
