package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// snapshot returns a world with one block and a few stamped cells.
func snapshot(t *testing.T) l6world.Snapshot {
	t.Helper()
	w := testutil.NewWorld(t, nil, l6world.Options{})
	w.AddConfirmed(t, l3objects.TypeBlockFire, 200, 50, 22, 10)

	g := w.CurrentMemoryMap()
	g.AddQuad(l1frames.OrientedRect(r2.Vec{}, 0, 40, 25), l4navmap.Content{Type: l4navmap.ContentClearOfObstacle})
	g.AddQuad(l1frames.OrientedRect(r2.Vec{X: 200, Y: 50}, 0, 22, 22), l4navmap.Content{Type: l4navmap.ContentObstacleCube})
	return w.Snapshot(10)
}

func TestFootprintsAndLayers(t *testing.T) {
	t.Parallel()

	s := snapshot(t)
	fps := footprints(s)
	require.Len(t, fps, 1)
	assert.InDelta(t, 200, fps[0].Centre.X, 1e-9)
	assert.InDelta(t, 50, fps[0].Centre.Y, 1e-9)
	require.Len(t, fps[0].Outline, 5)
	assert.Equal(t, fps[0].Outline[0], fps[0].Outline[4])

	layers := cellLayers(s)
	assert.NotEmpty(t, layers[l4navmap.ContentClearOfObstacle])
	assert.NotEmpty(t, layers[l4navmap.ContentObstacleCube])
	assert.Empty(t, layers[l4navmap.ContentCliff])

	assert.Empty(t, cellLayers(l6world.Snapshot{}))
}

func TestFootprintsSkipUnknownPoses(t *testing.T) {
	t.Parallel()

	s := snapshot(t)
	s.Objects[0].SetPoseState(l3objects.PoseUnknown)
	assert.Empty(t, footprints(s))
}

func TestPNGRendererWritesEveryNth(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "png")
	r := NewPNGRenderer(dir, 2)
	s := snapshot(t)
	for i := 0; i < 3; i++ {
		r.Draw(s)
	}

	files := r.Files()
	require.Len(t, files, 2)
	assert.Zero(t, r.Failures())
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, filepath.Join(dir, "tick_000000_t10.png"), files[0])
	assert.Equal(t, filepath.Join(dir, "tick_000002_t10.png"), files[1])
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, snapshot(t)))
	out := buf.String()
	assert.Contains(t, out, "BlockWorld")
	assert.Contains(t, out, "obstacle_cube")
	assert.Contains(t, out, "robot")
}

func TestHTMLRendererRewritesPage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "html", "world.html")
	r := NewHTMLRenderer(path, 1)
	s := snapshot(t)
	Multi{Nop{}, nil, r}.Draw(s)
	Multi{r}.Draw(s)

	assert.Equal(t, 2, r.Writes())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "echarts")
}
