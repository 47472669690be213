package anomaly

import (
	"math"
	"math/rand"
)

// maxTreeSample caps the per-tree subsample. Isolation depth saturates well
// below this, and a bounded sample keeps tree height independent of the
// snapshot size.
const maxTreeSample = 256

// eulerGamma is the Euler-Mascheroni constant used by the harmonic-number
// approximation in averagePathLength.
const eulerGamma = 0.5772156649015329

// forestNode is one split in an isolation tree. Leaves carry the count of
// sample points that reached them; interior nodes carry an axis-parallel cut.
type forestNode struct {
	feature int
	cut     float64
	left    *forestNode
	right   *forestNode
	size    int
}

// forest is an ensemble of isolation trees grown from one seeded source, so
// the same observations and seed always rebuild the same trees.
type forest struct {
	trees      []*forestNode
	sampleSize int
}

// growForest builds an ensemble of isolation trees over the feature matrix.
// Every tree draws its subsample and cuts from the same sequential generator,
// which makes the whole ensemble a pure function of (features, trees, seed).
func growForest(features [][]float64, trees int, seed int64) *forest {
	if trees < 1 {
		trees = 1
	}
	f := &forest{sampleSize: len(features)}
	if f.sampleSize == 0 {
		return f
	}
	if f.sampleSize > maxTreeSample {
		f.sampleSize = maxTreeSample
	}
	heightCap := int(math.Ceil(math.Log2(float64(f.sampleSize)))) + 1

	rng := rand.New(rand.NewSource(seed))
	sample := make([][]float64, f.sampleSize)
	for t := 0; t < trees; t++ {
		perm := rng.Perm(len(features))
		for i := range sample {
			sample[i] = features[perm[i]]
		}
		f.trees = append(f.trees, growTree(sample, 0, heightCap, rng))
	}
	return f
}

// growTree recursively splits points on a random feature at a random cut
// within that feature's range. Points that cannot be separated, either
// because the height cap hit or every feature is constant, settle into one
// leaf whose size stands in for the unbuilt subtree.
func growTree(points [][]float64, depth, heightCap int, rng *rand.Rand) *forestNode {
	if len(points) <= 1 || depth >= heightCap {
		return &forestNode{size: len(points)}
	}

	width := len(points[0])
	feature, lo, hi := -1, 0.0, 0.0
	offset := rng.Intn(width)
	for attempt := 0; attempt < width; attempt++ {
		candidate := (offset + attempt) % width
		cLo, cHi := featureRange(points, candidate)
		if cHi > cLo {
			feature, lo, hi = candidate, cLo, cHi
			break
		}
	}
	if feature < 0 {
		return &forestNode{size: len(points)}
	}

	cut := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, p := range points {
		if p[feature] < cut {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &forestNode{size: len(points)}
	}
	return &forestNode{
		feature: feature,
		cut:     cut,
		left:    growTree(left, depth+1, heightCap, rng),
		right:   growTree(right, depth+1, heightCap, rng),
	}
}

func featureRange(points [][]float64, feature int) (float64, float64) {
	lo, hi := points[0][feature], points[0][feature]
	for _, p := range points[1:] {
		if p[feature] < lo {
			lo = p[feature]
		}
		if p[feature] > hi {
			hi = p[feature]
		}
	}
	return lo, hi
}

// score returns the ensemble anomaly score in (0, 1). Points isolating in
// shorter-than-average paths approach 1; points deep in dense regions fall
// toward 0, with 0.5 the expectation for an unremarkable point.
func (f *forest) score(point []float64) float64 {
	if len(f.trees) == 0 || len(point) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, point, 0)
	}
	expected := total / float64(len(f.trees))
	return math.Exp2(-expected / averagePathLength(float64(f.sampleSize)))
}

func pathLength(node *forestNode, point []float64, depth float64) float64 {
	if node.left == nil {
		return depth + averagePathLength(float64(node.size))
	}
	if point[node.feature] < node.cut {
		return pathLength(node.left, point, depth+1)
	}
	return pathLength(node.right, point, depth+1)
}

// averagePathLength is the expected unsuccessful-search depth in a binary
// tree over n points, the standard normalizer for isolation depth.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	return 2*(math.Log(n-1)+eulerGamma) - 2*(n-1)/n
}
