package graph_test

import (
	"bytes"
	"fmt"

	"github.com/telariq/loomgraph/pkg/graph"
)

func ExampleWriteSnapshot() {
	// Entities are listed in arbitrary order; serialization sorts by ID.
	s := graph.Snapshot{
		Version: 1,
		Entities: []graph.Entity{
			{ID: "e2", Label: "Acme Corp", Type: graph.TypeOrganization, CreatedAt: 100, UpdatedAt: 100},
			{ID: "e1", Label: "Alice", Type: graph.TypePerson, CreatedAt: 100, UpdatedAt: 100},
		},
		Relations: []graph.Relation{
			{ID: "r1", Source: "e1", Target: "e2", Label: "works_at", CreatedAt: 100},
		},
		LastUpdated: 100,
	}

	var buf bytes.Buffer
	if err := graph.WriteSnapshot(s, &buf); err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println(buf.String())
	// Output:
	// {
	//   "version": 1,
	//   "entities": [
	//     {
	//       "id": "e1",
	//       "label": "Alice",
	//       "type": "PERSON",
	//       "createdAt": 100,
	//       "updatedAt": 100
	//     },
	//     {
	//       "id": "e2",
	//       "label": "Acme Corp",
	//       "type": "ORGANIZATION",
	//       "createdAt": 100,
	//       "updatedAt": 100
	//     }
	//   ],
	//   "relations": [
	//     {
	//       "id": "r1",
	//       "source": "e1",
	//       "target": "e2",
	//       "relation": "works_at",
	//       "createdAt": 100
	//     }
	//   ],
	//   "lastUpdated": 100
	// }
}

func ExampleReadSnapshot() {
	// JSON input, for instance from a checkpoint. Unrecognized entity types
	// decode to UNKNOWN instead of failing.
	jsonData := `{
		"version": 3,
		"entities": [
			{"id": "e1", "label": "Alice", "type": "PERSON"},
			{"id": "e2", "label": "Warp Drive", "type": "GIZMO"}
		],
		"relations": [
			{"id": "r1", "source": "e1", "target": "e2", "relation": "invented"}
		]
	}`

	s, err := graph.ReadSnapshot(bytes.NewReader([]byte(jsonData)))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("Version:", s.Version)
	fmt.Println("Entities:", len(s.Entities))
	fmt.Println("Type of e2:", s.Entities[1].Type)
	// Output:
	// Version: 3
	// Entities: 2
	// Type of e2: UNKNOWN
}

func ExampleNormalizeLabel() {
	fmt.Println(graph.NormalizeLabel("  Dr. Alice  SMITH "))
	fmt.Println(graph.NormalizeLabel("Acme Corp."))
	fmt.Println(graph.NormalizeRelation("Works   At!"))
	// Output:
	// dralicesmith
	// acmecorp
	// works_at
}
