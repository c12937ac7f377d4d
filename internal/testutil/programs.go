package testutil

// Programs are Lox sources shared by tests and benchmarks.
var Programs = map[string]string{
	"hello": `print "hello lox!";`,
	"fib": `fun fib(n) {
  if (n < 2) return n;
  return fib(n - 1) + fib(n - 2);
}
print fib(20);`,
	"loop": `var sum = 0;
for (var i = 0; i < 10000; i = i + 1) {
  sum = sum + i;
}
print sum;`,
	"color": `print color("error", "bold red") + ": " + color("details", "yellow");`,
	"strings": `var s = "";
for (var i = 0; i < 100; i = i + 1) {
  s = s + str(i);
}
print len(s);`,
}
