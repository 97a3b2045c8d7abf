package breakout

// noise marks a point outside every dense region.
const noise = -1

// dbscan labels points of a precomputed distance matrix. Point j is a
// neighbour of i when dist[i][j] <= eps, and i counts as its own neighbour.
// Clusters are grown from core points in index order, so a border point
// reachable from two clusters joins the one found first.
func dbscan(dist [][]float64, eps float64, minSamples int) []int {
	n := len(dist)

	neighbors := make([][]int, n)
	core := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if dist[i][j] <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
		core[i] = len(neighbors[i]) >= minSamples
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = noise
	}

	label := 0
	for i := 0; i < n; i++ {
		if labels[i] != noise || !core[i] {
			continue
		}

		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[p] != noise {
				continue
			}
			labels[p] = label
			if !core[p] {
				continue
			}
			for _, q := range neighbors[p] {
				if labels[q] == noise {
					stack = append(stack, q)
				}
			}
		}
		label++
	}

	return labels
}
