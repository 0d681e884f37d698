package tracking

import (
	"testing"

	"lanecam/vehicle"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func det(x1, y1, x2, y2 float64) vehicle.Detection {
	return vehicle.Detection{Box: vehicle.NewBox(x1, y1, x2, y2), ClassID: vehicle.ClassCar, Confidence: 0.9}
}

func TestIdentityFollowsMovingVehicle(t *testing.T) {
	tr := NewDefault()

	var id uuid.UUID
	for f := 0; f < 20; f++ {
		y := 250.0 + float64(f)*5
		tracks, err := tr.Update([]vehicle.Detection{det(340, y, 420, y+60)})
		require.NoError(t, err)
		require.Len(t, tracks, 1)
		if f == 0 {
			id = tracks[0].ID
			continue
		}
		assert.Equal(t, id, tracks[0].ID, "frame %d", f)
		assert.Equal(t, y+60, tracks[0].Box.Hi().Y, "tracks carry the measured box")
	}
	assert.Equal(t, 1, tr.Len())
}

func TestSeparateVehiclesKeepSeparateIdentities(t *testing.T) {
	tr := NewDefault()

	first, err := tr.Update([]vehicle.Detection{det(200, 400, 260, 470), det(450, 300, 500, 340)})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.NotEqual(t, first[0].ID, first[1].ID)

	// Same vehicles, reported in the opposite order.
	second, err := tr.Update([]vehicle.Detection{det(452, 303, 502, 343), det(202, 402, 262, 472)})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[1].ID, second[0].ID)
	assert.Equal(t, first[0].ID, second[1].ID)
}

func TestTrackIsClaimedOnce(t *testing.T) {
	tr := NewDefault()
	first, err := tr.Update([]vehicle.Detection{det(300, 300, 360, 360)})
	require.NoError(t, err)

	// Two detections compete for the one track; the better match keeps it.
	second, err := tr.Update([]vehicle.Detection{det(330, 330, 390, 390), det(301, 301, 361, 361)})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[1].ID)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, tr.Len())
}

func TestLostTracksExpire(t *testing.T) {
	tr := New(2, DefaultMinScore)
	first, err := tr.Update([]vehicle.Detection{det(300, 300, 360, 360)})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		tracks, err := tr.Update(nil)
		require.NoError(t, err)
		assert.Empty(t, tracks)
	}
	assert.Equal(t, 1, tr.Len())

	_, ok := tr.Predicted(first[0].ID)
	assert.True(t, ok)

	again, err := tr.Update([]vehicle.Detection{det(300, 300, 360, 360)})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID, "recovered within the miss budget")

	for i := 0; i < 3; i++ {
		_, err := tr.Update(nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, tr.Len())
	_, ok = tr.Predicted(first[0].ID)
	assert.False(t, ok)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	tr := New(0, -1)
	assert.Equal(t, DefaultMaxNoMatch, tr.maxNoMatch)
	assert.Equal(t, DefaultMinScore, tr.minScore)
}

func TestScore(t *testing.T) {
	a := vehicle.NewBox(0, 0, 100, 100)
	assert.InDelta(t, 1.0, score(a, a), 1e-9)
	far := score(a, vehicle.NewBox(1000, 1000, 1100, 1100))
	near := score(a, vehicle.NewBox(150, 0, 250, 100))
	assert.Less(t, far, near)
	assert.Less(t, near, 0.5)
}
