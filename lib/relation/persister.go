// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relation

// Changes is the result of a reconciliation.
type Changes struct {
	objects  []interface{}
	seen     map[interface{}]struct{}
	attached []link
	detached []interface{}
}

type link struct {
	assoc   *Association
	related interface{}
	owner   interface{}
}

func newChanges() *Changes {
	return &Changes{
		seen: make(map[interface{}]struct{}),
	}
}

func (c *Changes) add(meta *Metadata, obj interface{}) {
	key := meta.Identity(obj)
	if _, found := c.seen[key]; found {
		return
	}
	c.seen[key] = struct{}{}
	c.objects = append(c.objects, obj)
}

// Objects returns the related objects that must be saved, in reconciliation order.
func (c *Changes) Objects() []interface{} {
	return append([]interface{}(nil), c.objects...)
}

// Detached returns the objects whose back-reference was cleared.
func (c *Changes) Detached() []interface{} {
	return append([]interface{}(nil), c.detached...)
}

// Len returns the number of objects to save.
func (c *Changes) Len() int {
	return len(c.objects)
}

// Relink sets the back-references of the attached objects again.
//
// A new owner has no identifier until it is inserted, so the foreign keys
// written by Reconcile are zero. Relink runs after the insert.
func (c *Changes) Relink() error {
	for _, l := range c.attached {
		l.assoc.SetBack(l.related, l.owner)
	}

	return nil
}

// Reconcile brings the back-references of the non-owning relations of entity
// in line with its current related objects.
//
// Objects present in the snapshot but missing from the current collection are
// detached. Every current object is attached to entity. Owning relations are
// left alone, the ORM saves those from the entity itself.
func Reconcile(meta *Metadata, snap Snapshot, entity interface{}) *Changes {
	changes := newChanges()
	if meta == nil || isNil(entity) {
		return changes
	}

	for _, a := range meta.associations {
		if a.Owning {
			continue
		}

		target := a.Target()
		current := a.Related(entity)

		present := make(map[interface{}]struct{}, len(current))
		for _, obj := range current {
			present[target.Identity(obj)] = struct{}{}
		}

		for _, obj := range snap.before[a.Name] {
			if _, found := present[target.Identity(obj)]; found {
				continue
			}
			a.ClearBack(obj)
			changes.detached = append(changes.detached, obj)
			changes.add(target, obj)
		}

		for _, obj := range current {
			a.SetBack(obj, entity)
			changes.attached = append(changes.attached, link{assoc: a, related: obj, owner: entity})
			changes.add(target, obj)
		}
	}

	return changes
}

// Release detaches every object related to entity through a non-owning relation.
//
// Call it before deleting entity, so the related rows do not keep pointing to a missing owner.
func Release(meta *Metadata, entity interface{}) *Changes {
	changes := newChanges()
	if meta == nil || isNil(entity) {
		return changes
	}

	for _, a := range meta.associations {
		if a.Owning {
			continue
		}

		for _, obj := range a.Related(entity) {
			a.ClearBack(obj)
			changes.detached = append(changes.detached, obj)
			changes.add(a.Target(), obj)
		}
	}

	return changes
}
