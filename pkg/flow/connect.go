package flow

// Connect writes both sides of an edge from a producing pin to a
// consuming pin. This is the only sanctioned way to author the
// ConnectedTo/DependsOn pair; everything else relies on the cleanup
// pipeline to remove half-written edges.
func Connect(from, to *Pin) {
	from.ConnectedTo.Add(to.ID)
	to.DependsOn.Add(from.ID)
}

// Disconnect removes both sides of an edge.
func Disconnect(from, to *Pin) {
	from.ConnectedTo.Remove(to.ID)
	to.DependsOn.Remove(from.ID)
}
