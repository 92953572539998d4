/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package linepp is a line-oriented text preprocessor. It substitutes whole
// identifier macros and evaluates #if/#elseif/#else/#endif blocks whose
// conditions are boolean expressions over 0 and 1, and splices #include
// content obtained from a caller supplied resolver.
package linepp

import (
	"io"

	"github.com/fwessels/linepp/internal/expr"
	"github.com/fwessels/linepp/internal/preprocessor"
)

type (
	Context          = preprocessor.Context
	Error            = preprocessor.Error
	ErrorKind        = preprocessor.ErrorKind
	Includes         = preprocessor.Includes
	RelativeIncludes = preprocessor.RelativeIncludes
	IncludesFunc     = preprocessor.IncludesFunc
	NoIncludes       = preprocessor.NoIncludes
)

const (
	ErrIO                  = preprocessor.ErrIO
	ErrBadExpr             = preprocessor.ErrBadExpr
	ErrUnexpectedDirective = preprocessor.ErrUnexpectedDirective
	ErrInclude             = preprocessor.ErrInclude
	ErrUnclosedIf          = preprocessor.ErrUnclosedIf
)

var (
	ErrNotSupported = preprocessor.ErrNotSupported
	ErrIncludeDepth = preprocessor.ErrIncludeDepth
)

// New returns a Context without #include support.
func New() *Context { return preprocessor.New() }

// NewWith returns a Context resolving #include through includes.
func NewWith(includes Includes) *Context { return preprocessor.NewWith(includes) }

func Process(r io.Reader, ctx *Context) (string, error) { return ctx.Process(r) }

func ProcessString(s string, ctx *Context) (string, error) { return ctx.ProcessString(s) }

// Evaluate evaluates a condition as written after #if, without macro
// substitution.
func Evaluate(expression string) (bool, error) { return expr.Eval(expression) }

func IsKind(err error, kind ErrorKind) bool { return preprocessor.IsKind(err, kind) }

// ValidName reports whether name is accepted by Context.Define.
func ValidName(name string) bool { return preprocessor.ValidName(name) }
