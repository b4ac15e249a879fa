package catzilla

import (
	"sync"

	"github.com/catzilla-org/catzilla/arena"
)

// pool holds the sync.Pool instances backing per-request allocation, grounded
// on air/pool.go's Pool type, narrowed to the two values Catzilla actually
// pools (Request and Response — air also pools Context/URI/RequestHeader/
// ResponseHeader, which this generation's split Request/Response API folds
// into those two) and paired with an arena.Pools for the REQUEST/RESPONSE
// bulk allocators described in spec.md §3.
type pool struct {
	requestPool  *sync.Pool
	responsePool *sync.Pool
	arenas       *arena.Pools
}

func newPool() *pool {
	return &pool{
		requestPool:  &sync.Pool{New: func() interface{} { return newRequest() }},
		responsePool: &sync.Pool{New: func() interface{} { return newResponse() }},
		arenas:       arena.NewPools(),
	}
}

func (p *pool) Request() *Request {
	return p.requestPool.Get().(*Request)
}

func (p *pool) Response() *Response {
	return p.responsePool.Get().(*Response)
}

func (p *pool) putRequest(r *Request) {
	if r.arena != nil {
		p.arenas.Put(r.arena)
	}
	r.reset()
	p.requestPool.Put(r)
}

func (p *pool) putResponse(r *Response) {
	if r.arena != nil {
		p.arenas.Put(r.arena)
	}
	r.reset()
	p.responsePool.Put(r)
}
