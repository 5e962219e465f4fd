package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode the top-level blocks of any pipeline file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type pipelineBlock struct {
	Name        string      `hcl:"name,label"`
	On          *onBlock    `hcl:"on,block"`
	Permissions *attrsBlock `hcl:"permissions,block"`
	Env         *attrsBlock `hcl:"env,block"`
	Jobs        []*jobBlock `hcl:"job,block"`
}

// onBlock accepts `manual = true` as shorthand for `events = ["manual"]`.
type onBlock struct {
	Manual    *bool    `hcl:"manual,optional"`
	Events    []string `hcl:"events,optional"`
	TagPrefix *string  `hcl:"tag_prefix,optional"`
}

// attrsBlock is any block holding free-form attributes (env, with, ...).
type attrsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type jobBlock struct {
	Name     string         `hcl:"name,label"`
	RunsOn   hcl.Expression `hcl:"runs_on,optional"`
	Needs    []string       `hcl:"needs,optional"`
	If       hcl.Expression `hcl:"if,optional"`
	Secrets  []string       `hcl:"secrets,optional"`
	FailFast *bool          `hcl:"fail_fast,optional"`
	Timeout  *string        `hcl:"timeout,optional"`
	Matrix   *matrixBlock   `hcl:"matrix,block"`
	Env      *attrsBlock    `hcl:"env,block"`
	Steps    []*stepBlock   `hcl:"step,block"`
}

// matrixBlock mixes `include { ... }` entries with axis attributes such as
// `target = ["x86_64", "aarch64"]`.
type matrixBlock struct {
	Include []*attrsBlock `hcl:"include,block"`
	Axes    hcl.Body      `hcl:",remain"`
}

type stepBlock struct {
	Name string         `hcl:"name,label"`
	Uses string         `hcl:"uses"`
	If   hcl.Expression `hcl:"if,optional"`
	With *attrsBlock    `hcl:"with,block"`
	Env  *attrsBlock    `hcl:"env,block"`
}
