package addon

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateType = errors.New("add-on type already registered")
	ErrUnknownType   = errors.New("add-on type not registered")
)

// Factory 创建附加模块实例
type Factory func(name, family, whoAmI, revision string) (*AddOn, error)

// Registrar 注册接口，由宿主实现
type Registrar interface {
	Register(typeName, family, whoAmI string, f Factory) error
}

// Entry 一条注册记录
type Entry struct {
	TypeName string `json:"typeName"`
	Family   string `json:"family"`
	WhoAmI   string `json:"whoAmI"`
	factory  Factory
}

type registryKey struct {
	family string
	whoAmI string
}

// Registry 按 (总线族, who-am-i) 保存工厂函数。
// 进程启动时构造一次，以引用传给使用方。
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]Entry)}
}

// Register 注册一个类型，同一 (family, whoAmI) 重复注册返回错误
func (r *Registry) Register(typeName, family, whoAmI string, f Factory) error {
	if f == nil {
		return fmt.Errorf("register %s: nil factory", typeName)
	}
	key := registryKey{family: family, whoAmI: whoAmI}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %s/%s (already bound to %s)", ErrDuplicateType, family, whoAmI, old.TypeName)
	}
	r.entries[key] = Entry{TypeName: typeName, Family: family, WhoAmI: whoAmI, factory: f}
	return nil
}

// Lookup 查找注册记录
func (r *Registry) Lookup(family, whoAmI string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[registryKey{family: family, whoAmI: whoAmI}]
	return e, ok
}

// Create 通过注册的工厂函数创建实例
func (r *Registry) Create(family, whoAmI, name, revision string) (*AddOn, error) {
	e, ok := r.Lookup(family, whoAmI)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownType, family, whoAmI)
	}
	return e.factory(name, family, whoAmI, revision)
}

// Entries 按 family、whoAmI 排序返回所有注册记录
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].WhoAmI < out[j].WhoAmI
	})
	return out
}

// NewFactory 返回某个类型的工厂函数，所有实例共享 env
func NewFactory(kind Kind, env Env) Factory {
	return func(name, family, whoAmI, revision string) (*AddOn, error) {
		return newAddOn(kind, name, family, whoAmI, revision, env), nil
	}
}

// RegisterAddOns 注册全部类型。每个 (类型, 总线族) 只注册一次，
// 同一类型在多个族下共享同一个工厂函数。
func RegisterAddOns(r Registrar, env Env) error {
	for _, kind := range Kinds() {
		f := NewFactory(kind, env)
		for _, family := range kind.Families() {
			if err := r.Register(kind.TypeName(), family, kind.WhoAmI(), f); err != nil {
				return fmt.Errorf("register %s: %w", kind, err)
			}
		}
	}
	return nil
}
