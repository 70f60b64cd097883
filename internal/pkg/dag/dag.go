/*
 * Copyright 2018 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dag

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Wrapper around a directed graph so we can define our own methods on it
type Dag struct {
	graph       *simple.DirectedGraph
	nodesByName map[string]NamedNode
}

// Describes a node that should be created in the graph along with the names
// of the nodes it depends on. This is just a descriptor, not a graph node.
type Descriptor struct {
	Name      string
	DependsOn []string
}

// A node in a graph that also has a string name
type NamedNode struct {
	name string // must be unique across all nodes in the graph
	node graph.Node
}

func (n NamedNode) Name() string {
	return n.name
}

func (n NamedNode) ID() int64 {
	return n.node.ID()
}

// Builds a graph from descriptors. An edge runs from each dependency to the
// node depending on it. An error is returned for unknown or self dependencies
// and if the resulting graph is cyclical.
func Build(descriptors []Descriptor) (*Dag, error) {
	graphObj := simple.NewDirectedGraph()
	nodesByName := make(map[string]NamedNode, len(descriptors))

	known := make(map[string]bool, len(descriptors))
	for _, descriptor := range descriptors {
		if known[descriptor.Name] {
			return nil, errors.Errorf("Node '%s' is declared more than once", descriptor.Name)
		}
		known[descriptor.Name] = true
	}

	for _, descriptor := range descriptors {
		descriptorNode := addNode(graphObj, nodesByName, descriptor.Name)

		for _, dependencyName := range descriptor.DependsOn {
			if !known[dependencyName] {
				return nil, errors.Errorf("Node '%s' depends on a node that doesn't "+
					"exist: %s", descriptor.Name, dependencyName)
			}

			if dependencyName == descriptor.Name {
				return nil, errors.Errorf("Node %s is not allowed to depend on itself",
					descriptor.Name)
			}

			parentNode := addNode(graphObj, nodesByName, dependencyName)

			log.Logger.Tracef("Creating edge from '%s' to '%s'", dependencyName, descriptor.Name)
			graphObj.SetEdge(graphObj.NewEdge(parentNode, descriptorNode))
		}
	}

	if _, err := topo.Sort(graphObj); err != nil {
		return nil, errors.Wrapf(err, "Cyclical dependencies detected")
	}

	return &Dag{
		graph:       graphObj,
		nodesByName: nodesByName,
	}, nil
}

// Adds a node to the graph if it isn't already in it
func addNode(graphObj *simple.DirectedGraph, nodes map[string]NamedNode, nodeName string) NamedNode {
	existing, ok := nodes[nodeName]
	if ok {
		return existing
	}

	namedNode := NamedNode{
		name: nodeName,
		node: graphObj.NewNode(),
	}
	graphObj.AddNode(namedNode)
	nodes[nodeName] = namedNode
	return namedNode
}

// Returns the names of the direct dependencies of a node, sorted
func (g *Dag) Parents(name string) ([]string, error) {
	namedNode, ok := g.nodesByName[name]
	if !ok {
		return nil, errors.Errorf("Graph doesn't contain a node called '%s'", name)
	}

	return sortedNames(g.graph.To(namedNode.ID())), nil
}

// Returns the names of all transitive dependencies of a node, sorted
func (g *Dag) Ancestors(name string) ([]string, error) {
	namedNode, ok := g.nodesByName[name]
	if !ok {
		return nil, errors.Errorf("Graph doesn't contain a node called '%s'", name)
	}

	seen := map[string]bool{}
	g.addAncestors(namedNode, seen)

	names := make([]string, 0, len(seen))
	for ancestor := range seen {
		names = append(names, ancestor)
	}
	sort.Strings(names)
	return names, nil
}

func (g *Dag) addAncestors(node NamedNode, seen map[string]bool) {
	parents := g.graph.To(node.ID())
	for parents.Next() {
		parent := parents.Node().(NamedNode)
		if seen[parent.name] {
			continue
		}
		seen[parent.name] = true
		g.addAncestors(parent, seen)
	}
}

// Returns an error unless every node appears after all of its dependencies
// in the given sequence, i.e. the sequence is a topological order of the graph
func (g *Dag) VerifyOrder(sequence []string) error {
	position := make(map[string]int, len(sequence))
	for i, name := range sequence {
		position[name] = i
	}

	for _, name := range sequence {
		parents, err := g.Parents(name)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, parent := range parents {
			if position[parent] > position[name] {
				return errors.Errorf("'%s' depends on '%s' but is ordered before it",
					name, parent)
			}
		}
	}

	return nil
}

func sortedNames(nodes graph.Nodes) []string {
	names := make([]string, 0)
	for nodes.Next() {
		names = append(names, nodes.Node().(NamedNode).name)
	}
	sort.Strings(names)
	return names
}
