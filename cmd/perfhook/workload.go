// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/mbeema/perfhook/pkg/engine/probe"
	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/rs/xid"
)

// orders is the demo workload the run command watches. Its methods route
// through probe sites so the probe engine can hook them.
type orders struct {
	mu     sync.Mutex
	stock  map[string]int
	placed int
	maxLag time.Duration
}

var (
	newOrdersSite, placeSite, restockSite *probe.Site

	ordersType = hook.MustClassOf(orders{}, hook.WithConstructors(newOrders))
)

func init() {
	newOrdersSite = probe.NewSite(newOrders)
	placeSite = probe.NewSite((*orders).Place)
	restockSite = probe.NewSite((*orders).Restock)
}

var errOutOfStock = errors.New("out of stock")

func newOrders(maxLag time.Duration) *orders {
	res := newOrdersSite.Run(nil, []any{maxLag}, func(args []any) []any {
		return []any{&orders{
			stock:  map[string]int{"apple": 10, "pear": 5, "plum": 2},
			maxLag: args[0].(time.Duration),
		}}
	})
	return probe.Out[*orders](res, 0)
}

// Place reserves qty units of sku and returns an order ID.
func (o *orders) Place(sku string, qty int) (string, error) {
	res := placeSite.Run(o, []any{sku, qty}, func(args []any) []any {
		id, err := o.place(args[0].(string), args[1].(int))
		return []any{id, err}
	})
	return probe.Out[string](res, 0), probe.Out[error](res, 1)
}

func (o *orders) place(sku string, qty int) (string, error) {
	if o.maxLag > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(o.maxLag))))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stock[sku] < qty {
		return "", errOutOfStock
	}
	o.stock[sku] -= qty
	o.placed++
	return xid.New().String(), nil
}

// Restock adds qty units of sku in a background goroutine and waits for it.
func (o *orders) Restock(sku string, qty int) int {
	res := restockSite.Run(o, []any{sku, qty}, func(args []any) []any {
		done := make(chan int)
		go func() {
			o.mu.Lock()
			o.stock[args[0].(string)] += args[1].(int)
			n := o.stock[args[0].(string)]
			o.mu.Unlock()
			done <- n
		}()
		return []any{<-done}
	})
	return probe.Out[int](res, 0)
}

var skus = []string{"apple", "pear", "plum"}

// step runs one round of demo traffic.
func (o *orders) step(i int) {
	sku := skus[i%len(skus)]
	if _, err := o.Place(sku, 1+i%3); errors.Is(err, errOutOfStock) {
		o.Restock(sku, 10)
	}
}
