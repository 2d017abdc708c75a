//go:build !cgo

package encoder

// Without cgo there is no libx264 binding; the registry stays as the
// platform probe leaves it, which may legitimately be empty.
func registerX264Backend(m *Manager) {
	if m == nil {
		return
	}
	m.addCapability(Capability{
		Name:           "x264-h264",
		Codec:          "h264",
		Description:    "libx264 H.264 encoder",
		Disabled:       true,
		DisabledReason: "built without cgo",
	})
}
