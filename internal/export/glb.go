package export

import (
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/atlasmesh/internal/mesh"
)

// Generator is recorded in the asset block of every written file.
const Generator = "atlasmesh"

// NewDocument builds a single-node glTF document holding m as one indexed
// triangle primitive with per-vertex normals.
func NewDocument(name string, m *mesh.Mesh) *gltf.Document {
	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = v.Float32()
	}
	normals := make([][3]float32, len(m.Vertices))
	for i, n := range m.Normals() {
		normals[i] = n.Float32()
	}
	indices := make([]uint32, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		indices = append(indices, f[0], f[1], f[2])
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
		},
		Indices: gltf.Index(uint32(indicesAccessor)),
	}
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

// WriteGLB saves m as a binary glTF file at path.
func WriteGLB(path, name string, m *mesh.Mesh) error {
	return gltf.SaveBinary(NewDocument(name, m), path)
}
